package server

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	identifierdomain "github.com/smallbiznis/buildledger/internal/identifier/domain"
	obscontext "github.com/smallbiznis/buildledger/internal/observability/context"
	"github.com/smallbiznis/buildledger/internal/policy"
)

// Identity headers are set by the upstream gateway after authentication.
const (
	HeaderUserID          = "X-User-Id"
	HeaderUserRole        = "X-User-Role"
	HeaderUserPermissions = "X-User-Permissions"
	HeaderUserInactive    = "X-User-Inactive"

	contextSubjectKey = "policy_subject"
)

type resourceFunc func(c *gin.Context) *policy.Resource

// ActorContext resolves the caller from the identity headers and tags the
// request context so logs and audit events carry the actor.
func (s *Server) ActorContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		subject := subjectFromHeaders(c)
		if subject != nil {
			c.Set(contextSubjectKey, subject)
			ctx := obscontext.WithActor(c.Request.Context(), subject.ID, subject.Role)
			c.Request = c.Request.WithContext(ctx)
		}
		c.Next()
	}
}

func subjectFromHeaders(c *gin.Context) *policy.Subject {
	id := strings.TrimSpace(c.GetHeader(HeaderUserID))
	if id == "" {
		return nil
	}

	var permissions []string
	for _, p := range strings.Split(c.GetHeader(HeaderUserPermissions), ",") {
		if p = strings.TrimSpace(p); p != "" {
			permissions = append(permissions, p)
		}
	}

	inactive, _ := strconv.ParseBool(strings.TrimSpace(c.GetHeader(HeaderUserInactive)))
	return &policy.Subject{
		ID:          id,
		Role:        strings.ToLower(strings.TrimSpace(c.GetHeader(HeaderUserRole))),
		Permissions: permissions,
		Inactive:    inactive,
	}
}

func subjectFromContext(c *gin.Context) *policy.Subject {
	value, ok := c.Get(contextSubjectKey)
	if !ok {
		return nil
	}
	subject, _ := value.(*policy.Subject)
	return subject
}

// RequirePolicy aborts with 401 for anonymous callers and 403 for denied ones.
func (s *Server) RequirePolicy(action string, resource resourceFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.authorize(c, action, resource); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

// RequireMintPolicy gates identifier minting on the create action of the
// object the identifier belongs to.
func (s *Server) RequireMintPolicy() gin.HandlerFunc {
	return func(c *gin.Context) {
		kind, err := identifierdomain.ParseKind(strings.TrimSpace(c.Param("kind")))
		if err != nil {
			AbortWithError(c, err)
			return
		}

		action, object := mintAction(kind)
		err = s.authorize(c, action, func(*gin.Context) *policy.Resource {
			return &policy.Resource{Type: object}
		})
		if err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

func mintAction(kind identifierdomain.Kind) (string, string) {
	switch kind {
	case identifierdomain.KindQuote:
		return policy.ActionQuoteCreate, policy.ObjectQuote
	case identifierdomain.KindInvoice:
		return policy.ActionInvoiceCreate, policy.ObjectInvoice
	case identifierdomain.KindChangeOrder:
		return policy.ActionChangeOrderCreate, policy.ObjectChangeOrder
	default:
		return policy.ActionProjectCreate, policy.ObjectProject
	}
}

func (s *Server) authorize(c *gin.Context, action string, resource resourceFunc) error {
	subject := subjectFromContext(c)
	pctx := policy.Context{
		Action:  action,
		User:    subject,
		Request: requestInfo(c),
	}
	if resource != nil {
		pctx.Resource = resource(c)
	}

	decision := s.authorizer.Authorize(c.Request.Context(), pctx)
	if decision.Allow {
		return nil
	}
	if subject == nil {
		return ErrUnauthorized
	}
	return ErrForbidden
}

func requestInfo(c *gin.Context) policy.Request {
	path := c.FullPath()
	if path == "" {
		path = c.Request.URL.Path
	}
	return policy.Request{
		ID:        obscontext.RequestIDFromContext(c.Request.Context()),
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
		Method:    c.Request.Method,
		Path:      path,
	}
}

func projectResource(c *gin.Context) *policy.Resource {
	return &policy.Resource{Type: policy.ObjectProject, ID: strings.TrimSpace(c.Param("id"))}
}
