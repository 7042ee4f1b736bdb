package service

import (
	"github.com/offline-triage-engine/internal/domain"
)

// RecommendationSet is the advice attached to a result.
type RecommendationSet struct {
	Actions  []string
	HomeCare []string
	FollowUp []string
}

type recommendationBand struct {
	minScore float64
	set      RecommendationSet
}

// recommendationBands is checked top-down; the first band whose minScore
// the score reaches applies.
var recommendationBands = []recommendationBand{
	{
		minScore: 8,
		set: RecommendationSet{
			Actions: []string{
				"Seek medical care today at an urgent care centre or emergency department",
				"Do not wait for symptoms to improve on their own",
				"Arrange for someone to accompany you",
			},
			HomeCare: []string{"Avoid strenuous activity until you have been assessed"},
			FollowUp: []string{"Book a follow-up with your doctor within 48 hours of being seen"},
		},
	},
	{
		minScore: 6,
		set: RecommendationSet{
			Actions: []string{
				"Book an appointment with a doctor within 24 hours",
				"Consider a teleconsultation if you cannot travel",
			},
			HomeCare: []string{"Keep a record of your symptoms and temperature"},
			FollowUp: []string{"Seek care sooner if symptoms get worse"},
		},
	},
	{
		minScore: 4,
		set: RecommendationSet{
			Actions: []string{
				"Monitor your symptoms closely for the next 24 to 48 hours",
				"Contact a pharmacist or doctor if you are unsure",
			},
			HomeCare: []string{"Use over-the-counter remedies as directed on the label"},
			FollowUp: []string{"See a doctor if symptoms do not improve within 3 days"},
		},
	},
	{
		minScore: 0,
		set: RecommendationSet{
			Actions: []string{
				"Self-care at home is usually enough",
				"Watch for any new or worsening symptoms",
			},
			HomeCare: []string{},
			FollowUp: []string{"See a doctor if symptoms last longer than a week"},
		},
	},
}

// baseHomeCare is appended to every recommendation regardless of band.
var baseHomeCare = []string{
	"Get plenty of rest",
	"Stay well hydrated",
	"Eat light, nutritious meals",
	"Monitor your symptoms and note any changes",
}

// GenerateRecommendations returns the advice for an urgency score. Advice
// from protocol, when given, follows the band's own advice. Lists are
// de-duplicated and never nil.
func GenerateRecommendations(score float64, protocol *domain.Protocol) RecommendationSet {
	band := recommendationBands[len(recommendationBands)-1].set
	for _, b := range recommendationBands {
		if score >= b.minScore {
			band = b.set
			break
		}
	}

	actions := [][]string{band.Actions}
	homeCare := [][]string{band.HomeCare}
	followUp := [][]string{band.FollowUp}
	if protocol != nil {
		homeCare = append(homeCare, protocol.HomeCare)
		followUp = append(followUp, protocol.FollowUp)
		if len(protocol.SeekCareIf) > 0 {
			seek := make([]string, 0, len(protocol.SeekCareIf))
			for _, s := range protocol.SeekCareIf {
				seek = append(seek, "Seek care if: "+s)
			}
			actions = append(actions, seek)
		}
	}
	homeCare = append(homeCare, baseHomeCare)

	return RecommendationSet{
		Actions:  dedupe(actions...),
		HomeCare: dedupe(homeCare...),
		FollowUp: dedupe(followUp...),
	}
}

// dedupe concatenates lists, dropping blanks and repeats.
func dedupe(lists ...[]string) []string {
	seen := make(map[string]bool)
	out := make([]string, 0)
	for _, list := range lists {
		for _, item := range list {
			if item == "" || seen[item] {
				continue
			}
			seen[item] = true
			out = append(out, item)
		}
	}
	return out
}
