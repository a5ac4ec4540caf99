package entities

import (
	"fmt"

	"github.com/google/uuid"
)

// PoolSnapshot is the aggregate of all predictions on a scenario
type PoolSnapshot struct {
	YesPool          int64 `json:"yes_pool"`
	NoPool           int64 `json:"no_pool"`
	TotalPool        int64 `json:"total_pool"`
	ParticipantCount int   `json:"participant_count"`
}

// ZeroStakePolicy decides how scenarios whose predictions all carry a zero
// stake are aggregated
type ZeroStakePolicy string

const (
	// ZeroStakeCountVotes counts one unit per prediction. Scenarios created
	// before staking existed only have zero-amount predictions.
	ZeroStakeCountVotes ZeroStakePolicy = "votes"
	// ZeroStakeSumStakes always sums amounts, so all-zero scenarios stay at zero
	ZeroStakeSumStakes ZeroStakePolicy = "stakes"
)

// ParseZeroStakePolicy converts a config value into a policy
func ParseZeroStakePolicy(s string) (ZeroStakePolicy, error) {
	switch p := ZeroStakePolicy(s); p {
	case ZeroStakeCountVotes, ZeroStakeSumStakes:
		return p, nil
	default:
		return "", fmt.Errorf("unknown zero stake policy %q", s)
	}
}

// ComputePools aggregates predictions into yes/no pools
func ComputePools(predictions []*Prediction, policy ZeroStakePolicy) PoolSnapshot {
	if len(predictions) == 0 {
		return PoolSnapshot{}
	}

	allZero := true
	for _, p := range predictions {
		if p.Amount != 0 {
			allZero = false
			break
		}
	}
	countVotes := allZero && policy == ZeroStakeCountVotes

	var snapshot PoolSnapshot
	participants := make(map[uuid.UUID]struct{}, len(predictions))
	for _, p := range predictions {
		weight := p.Amount
		if countVotes {
			weight = 1
		}

		switch p.Side {
		case SideYes:
			snapshot.YesPool += weight
		case SideNo:
			snapshot.NoPool += weight
		}
		participants[p.UserID] = struct{}{}
	}

	snapshot.TotalPool = snapshot.YesPool + snapshot.NoPool
	snapshot.ParticipantCount = len(participants)
	return snapshot
}
