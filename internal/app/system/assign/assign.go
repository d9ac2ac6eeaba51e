// Package assign ranks confirmed participants and maps them onto a
// mass type's role slots.
//
// Plan is a pure function over its input: identical inputs always
// yield the identical assignment list, so re-running it before the
// roles are persisted is harmless. It performs no I/O and no mutation;
// the caller persists the result through the masses store.
package assign

import (
	"math"
	"sort"
	"time"

	"github.com/migueww/acolitapp/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ConfirmedUser is one confirmed attendance entry.
type ConfirmedUser struct {
	UserID      primitive.ObjectID
	ConfirmedAt time.Time
}

// Profile carries the per-user persisted inputs to scoring.
type Profile struct {
	GlobalScore int
	LastRoleKey string
}

// Input bundles everything Plan needs.
type Input struct {
	// TemplateRoleKeys is the mass type's ordered slot list. NONE
	// entries are filtered out before slot ordering.
	TemplateRoleKeys []string

	// FallbackRoleKey receives confirmed users beyond the slot count.
	// Empty means NONE.
	FallbackRoleKey string

	// Weights resolves role keys to configured weights. Missing keys
	// weigh 0.
	Weights map[string]int

	// Confirmed lists confirmed users in stored order. Duplicate user
	// ids keep their first occurrence.
	Confirmed []ConfirmedUser

	// Profiles indexes user profiles by id. Users without a profile
	// score the default.
	Profiles map[primitive.ObjectID]Profile

	// PrevWeights holds each user's role weight from their most recent
	// prior finished mass, when one exists. Users absent here fall
	// back to their profile's LastRoleKey weight, else 0.
	PrevWeights map[primitive.ObjectID]int
}

// candidate is one scored confirmed user.
type candidate struct {
	userID       primitive.ObjectID
	arrivalIndex int
	globalScore  int
	score        int
}

// Plan computes the slot-to-user mapping for a mass in preparation.
// Slots with no assignable user keep a nil user id; confirmed users
// beyond the slot count each get an entry with the fallback role key.
func Plan(in Input) []models.Assignment {
	slots := orderSlots(in.TemplateRoleKeys, in.Weights)
	ranked := rank(in)

	fallback := in.FallbackRoleKey
	if fallback == "" {
		fallback = models.RoleKeyNone
	}

	out := make([]models.Assignment, 0, max(len(slots), len(ranked)))
	for i, roleKey := range slots {
		if i < len(ranked) {
			id := ranked[i].userID
			out = append(out, models.Assignment{RoleKey: roleKey, UserID: &id})
		} else {
			out = append(out, models.Assignment{RoleKey: roleKey})
		}
	}
	for i := len(slots); i < len(ranked); i++ {
		id := ranked[i].userID
		out = append(out, models.Assignment{RoleKey: fallback, UserID: &id})
	}
	return out
}

// orderSlots filters NONE out of the template and sorts the remaining
// keys by descending weight, ties broken by lexicographic key order.
func orderSlots(template []string, weights map[string]int) []string {
	slots := make([]string, 0, len(template))
	for _, key := range template {
		if key == models.RoleKeyNone || key == "" {
			continue
		}
		slots = append(slots, key)
	}
	sort.SliceStable(slots, func(i, j int) bool {
		wi, wj := weights[slots[i]], weights[slots[j]]
		if wi != wj {
			return wi > wj
		}
		return slots[i] < slots[j]
	})
	return slots
}

// rank scores and orders the confirmed users.
func rank(in Input) []candidate {
	// Deduplicate by user id, first occurrence wins, then order by
	// confirmation time (earlier first), ties by user id.
	seen := make(map[primitive.ObjectID]struct{}, len(in.Confirmed))
	confirmed := make([]ConfirmedUser, 0, len(in.Confirmed))
	for _, c := range in.Confirmed {
		if _, dup := seen[c.UserID]; dup {
			continue
		}
		seen[c.UserID] = struct{}{}
		confirmed = append(confirmed, c)
	}
	sort.SliceStable(confirmed, func(i, j int) bool {
		if !confirmed[i].ConfirmedAt.Equal(confirmed[j].ConfirmedAt) {
			return confirmed[i].ConfirmedAt.Before(confirmed[j].ConfirmedAt)
		}
		return confirmed[i].UserID.Hex() < confirmed[j].UserID.Hex()
	})

	n := len(confirmed)
	cands := make([]candidate, 0, n)
	for i, c := range confirmed {
		profile, hasProfile := in.Profiles[c.UserID]
		gs := models.DefaultGlobalScore
		if hasProfile && profile.GlobalScore >= 0 && profile.GlobalScore <= 100 {
			gs = profile.GlobalScore
		}

		prev, ok := in.PrevWeights[c.UserID]
		if !ok {
			if hasProfile && profile.LastRoleKey != "" {
				prev = in.Weights[profile.LastRoleKey]
			} else {
				prev = 0
			}
		}

		arrival := 100
		if n > 1 {
			arrival = round(100 * float64(n-1-i) / float64(n-1))
		}
		rotation := round(float64(100-prev) * 0.6)
		bonus := round(float64(gs-50) * 0.4)

		cands = append(cands, candidate{
			userID:       c.UserID,
			arrivalIndex: i,
			globalScore:  gs,
			score:        arrival + rotation + bonus,
		})
	}

	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].score != cands[j].score {
			return cands[i].score > cands[j].score
		}
		if cands[i].arrivalIndex != cands[j].arrivalIndex {
			return cands[i].arrivalIndex < cands[j].arrivalIndex
		}
		if cands[i].globalScore != cands[j].globalScore {
			return cands[i].globalScore > cands[j].globalScore
		}
		return cands[i].userID.Hex() < cands[j].userID.Hex()
	})
	return cands
}

func round(x float64) int {
	return int(math.Round(x))
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
