package recast

import (
	"time"

	"go.uber.org/zap"
)

type TimerLabel int

const (
	RC_TIMER_TOTAL TimerLabel = iota
	RC_TIMER_RASTERIZE_TRIANGLES
	RC_TIMER_BUILD_COMPACTHEIGHTFIELD
	RC_TIMER_BUILD_CONTOURS
	RC_TIMER_BUILD_CONTOURS_TRACE
	RC_TIMER_BUILD_CONTOURS_SIMPLIFY
	RC_TIMER_FILTER_BORDER
	RC_TIMER_FILTER_WALKABLE
	RC_TIMER_FILTER_LOW_OBSTACLES
	RC_TIMER_BUILD_POLYMESH
	RC_TIMER_BUILD_POLYMESHDETAIL
	RC_TIMER_ERODE_AREA
	RC_TIMER_BUILD_DISTANCEFIELD
	RC_TIMER_BUILD_DISTANCEFIELD_DIST
	RC_TIMER_BUILD_DISTANCEFIELD_BLUR
	RC_TIMER_BUILD_REGIONS
	RC_TIMER_BUILD_REGIONS_WATERSHED
	RC_TIMER_BUILD_REGIONS_EXPAND
	RC_TIMER_BUILD_REGIONS_FLOOD
	RC_TIMER_BUILD_REGIONS_FILTER
	RC_MAX_TIMERS
)

var timerNames = [RC_MAX_TIMERS]string{
	"total",
	"rasterize_triangles",
	"build_compact_heightfield",
	"build_contours",
	"build_contours_trace",
	"build_contours_simplify",
	"filter_border",
	"filter_walkable",
	"filter_low_obstacles",
	"build_polymesh",
	"build_polymesh_detail",
	"erode_area",
	"build_distancefield",
	"build_distancefield_dist",
	"build_distancefield_blur",
	"build_regions",
	"build_regions_watershed",
	"build_regions_expand",
	"build_regions_flood",
	"build_regions_filter",
}

func (l TimerLabel) String() string {
	if l < 0 || l >= RC_MAX_TIMERS {
		return "unknown"
	}
	return timerNames[l]
}

// RcContext carries the logger and accumulates per-stage timings of one build.
// It is not safe for concurrent use; each build owns its own context.
type RcContext struct {
	log   *zap.Logger
	start [RC_MAX_TIMERS]time.Time
	acc   [RC_MAX_TIMERS]time.Duration
}

func NewRcContext(log *zap.Logger) *RcContext {
	if log == nil {
		log = zap.NewNop()
	}
	return &RcContext{log: log}
}

func (ctx *RcContext) Logger() *zap.Logger { return ctx.log }

func (ctx *RcContext) StartTimer(label TimerLabel) {
	ctx.start[label] = time.Now()
}

func (ctx *RcContext) StopTimer(label TimerLabel) {
	if ctx.start[label].IsZero() {
		return
	}
	ctx.acc[label] += time.Since(ctx.start[label])
	ctx.start[label] = time.Time{}
}

func (ctx *RcContext) AccumulatedTime(label TimerLabel) time.Duration {
	return ctx.acc[label]
}

func (ctx *RcContext) ResetTimers() {
	ctx.start = [RC_MAX_TIMERS]time.Time{}
	ctx.acc = [RC_MAX_TIMERS]time.Duration{}
}

// LogBuildTimes writes every non-zero timer at debug level.
func (ctx *RcContext) LogBuildTimes() {
	fields := make([]zap.Field, 0, RC_MAX_TIMERS)
	for i := TimerLabel(0); i < RC_MAX_TIMERS; i++ {
		if ctx.acc[i] > 0 {
			fields = append(fields, zap.Duration(i.String(), ctx.acc[i]))
		}
	}
	ctx.log.Debug("recast build times", fields...)
}
