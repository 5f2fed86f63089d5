package extract

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gleanerhq/gleaner/pkg/candidate"
)

// keywordFamily maps a set of markers to a growth vector type. Families are
// checked in order; the first match wins.
type keywordFamily struct {
	markers    []string
	vectorType string
}

var keywordFamilies = []keywordFamily{
	{markers: []string{"correct", "wrong", "error"}, vectorType: candidate.VectorTypeUserCorrection},
	{markers: []string{"should", "need to", "remember to"}, vectorType: candidate.VectorTypeProcedural},
	{markers: []string{"pattern", "always", "never"}, vectorType: candidate.VectorTypePatternRecognition},
	{markers: []string{"prefer", "better", "worse"}, vectorType: candidate.VectorTypePreferenceLearning},
}

// uncertainty markers that flag an implication as a knowledge gap
var gapMarkers = []string{"unclear", "figure out", "explore"}

// maxGapsPerCandidate caps gap extraction per candidate.
const maxGapsPerCandidate = 2

// classifyTopImplication promotes the top-ranked implication to a growth
// vector. Only the first implication is ever promoted, so extraction yields
// at most one vector per candidate no matter how many implications survived
// filtering.
func classifyTopImplication(implication string, c *candidate.Candidate) *candidate.GrowthVector {
	return &candidate.GrowthVector{
		ID:          uuid.NewString(),
		Implication: implication,
		Type:        classifyVectorType(implication),
		SourceID:    c.ID,
		Score:       c.Score,
		Weight:      vectorWeight(c.Score),
		Status:      candidate.VectorStatusCandidate,
		CreatedAt:   time.Now(),
	}
}

func classifyVectorType(implication string) string {
	lower := strings.ToLower(implication)
	for _, family := range keywordFamilies {
		for _, marker := range family.markers {
			if strings.Contains(lower, marker) {
				return family.vectorType
			}
		}
	}
	return candidate.VectorTypeInsight
}

// vectorWeight grows monotonically with the source significance score and is
// clamped to 0.95.
func vectorWeight(score float64) float64 {
	weight := 0.7 + score*0.25
	if weight > 0.95 {
		weight = 0.95
	}
	return weight
}

// extractGaps scans every filtered implication (not just the promoted one)
// for question marks or uncertainty markers, capped at two per candidate in
// scan order.
func extractGaps(implications []string, sourceID string) []candidate.KnowledgeGap {
	var gaps []candidate.KnowledgeGap

	for _, implication := range implications {
		if !isGap(implication) {
			continue
		}
		gaps = append(gaps, candidate.KnowledgeGap{
			Question:  implication,
			SourceID:  sourceID,
			CreatedAt: time.Now(),
		})
		if len(gaps) >= maxGapsPerCandidate {
			break
		}
	}

	return gaps
}

func isGap(implication string) bool {
	if strings.Contains(implication, "?") {
		return true
	}
	lower := strings.ToLower(implication)
	for _, marker := range gapMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
