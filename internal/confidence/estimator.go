// Package confidence scores a planned step's likely success from
// heuristics plus historical pattern lookups, and derives its risk level.
package confidence

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/harrison/agentd/internal/models"
	"github.com/harrison/agentd/internal/pattern"
)

const (
	// Baseline score before any adjustment.
	Baseline = 50

	// MaxPatternBonus caps the boost from a matching historical success
	// pattern. The actual bonus is weighted by the pattern's recorded
	// success rate.
	MaxPatternBonus = 40

	pathPlausibleBonus      = 20
	pathImplausiblePenalty  = 20
	pathMissingPenalty      = 10
	nondeterministicPenalty = 15

	// minRelevance is the overlap a pattern match needs before its
	// success rate counts toward the score.
	minRelevance = 0.3
)

// PatternSource answers historical pattern queries. *pattern.Store
// satisfies it; tests supply fakes.
type PatternSource interface {
	Query(ctx context.Context, description, actionType string) ([]pattern.Match, error)
}

// Estimator computes step confidence scores in [0,100].
type Estimator struct {
	patterns PatternSource
}

// NewEstimator creates an Estimator. patterns may be nil, in which case
// only heuristics contribute.
func NewEstimator(patterns PatternSource) *Estimator {
	return &Estimator{patterns: patterns}
}

// Score computes the confidence for executing the given action described
// by description inside workspaceRoot. Pattern-store failures degrade to
// heuristics-only scoring rather than failing the plan.
func (e *Estimator) Score(ctx context.Context, description string, action models.Action, workspaceRoot string) int {
	score := Baseline

	score += e.patternBonus(ctx, description, action)

	if action.Type.TouchesFiles() {
		score += pathAdjustment(action, workspaceRoot)
	}

	if action.Type.IsNondeterministic() {
		score -= nondeterministicPenalty
	}

	return clamp(score)
}

// patternBonus returns up to MaxPatternBonus based on the most relevant
// historical pattern, weighted by its recorded success rate.
func (e *Estimator) patternBonus(ctx context.Context, description string, action models.Action) int {
	if e.patterns == nil {
		return 0
	}

	matches, err := e.patterns.Query(ctx, description, string(action.Type))
	if err != nil || len(matches) == 0 {
		return 0
	}

	best := matches[0]
	for _, m := range matches[1:] {
		if m.RelevanceScore > best.RelevanceScore {
			best = m
		}
	}
	if best.RelevanceScore < minRelevance {
		return 0
	}

	return int(math.Round(MaxPatternBonus * best.SuccessRate))
}

// pathAdjustment applies path-plausibility heuristics for file-touching
// actions: +20 for a plausible workspace-relative path, -20 for an
// implausible one, -10 when the path parameter is absent.
func pathAdjustment(action models.Action, workspaceRoot string) int {
	path := action.Param("path")
	if path == "" {
		return -pathMissingPenalty
	}

	if strings.Contains(path, "..") || strings.ContainsRune(path, '\x00') {
		return -pathImplausiblePenalty
	}
	if filepath.IsAbs(path) && workspaceRoot != "" && !strings.HasPrefix(path, workspaceRoot) {
		return -pathImplausiblePenalty
	}

	if workspaceRoot != "" {
		full := path
		if !filepath.IsAbs(full) {
			full = filepath.Join(workspaceRoot, path)
		}
		if _, err := os.Stat(full); err == nil {
			return pathPlausibleBonus
		}
		// Writes may target files that do not exist yet; an existing
		// parent directory is plausible enough.
		if _, err := os.Stat(filepath.Dir(full)); err == nil {
			return pathPlausibleBonus
		}
		return -pathImplausiblePenalty
	}

	if filepath.Ext(path) != "" {
		return pathPlausibleBonus
	}
	return 0
}

func clamp(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
