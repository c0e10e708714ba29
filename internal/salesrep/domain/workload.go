package domain

import (
	"math"
	"sort"

	"github.com/bwmarrin/snowflake"
)

// BuildWorkloads computes utilisation for each candidate and sorts ascending.
// Ties keep the order of users, which the repository returns by id.
func BuildWorkloads(users []User, counts map[snowflake.ID]int64, defaultCapacity int) []Workload {
	workloads := make([]Workload, 0, len(users))
	for _, user := range users {
		capacity := defaultCapacity
		if user.SalesCapacity != nil {
			capacity = *user.SalesCapacity
		}
		count := counts[user.ID]
		workloads = append(workloads, Workload{
			UserID:                user.ID,
			Name:                  user.Name,
			Email:                 user.Email,
			ActiveProjectCount:    count,
			Capacity:              capacity,
			UtilizationPercentage: Utilization(count, capacity),
		})
	}

	sort.SliceStable(workloads, func(i, j int) bool {
		return workloads[i].UtilizationPercentage < workloads[j].UtilizationPercentage
	})
	return workloads
}

// Utilization is round(count/capacity*100); a non-positive capacity counts as saturated.
func Utilization(count int64, capacity int) int {
	if capacity <= 0 {
		return 100
	}
	return int(math.Round(float64(count) / float64(capacity) * 100))
}

// SelectRep picks the least-loaded representative below capacity, or the
// least-loaded overall when everyone is saturated. workloads must be sorted.
func SelectRep(workloads []Workload) (Workload, bool) {
	if len(workloads) == 0 {
		return Workload{}, false
	}
	for _, w := range workloads {
		if w.UtilizationPercentage < 100 {
			return w, true
		}
	}
	return workloads[0], true
}
