package database

import (
	"github.com/therealutkarshpriyadarshi/watchswap/pkg/models"
)

// StrikeTarget selects who receives a strike when a resolution applies
type StrikeTarget int

const (
	StrikeNone StrikeTarget = iota
	StrikeViewer
	StrikeOwner
)

// Resolution describes a conditional proof_submitted -> To transition and
// its side effects, applied together in one transaction
type Resolution struct {
	TaskID         int64
	To             string
	Reason         string
	IncrementViews bool
	Strike         StrikeTarget
}

// ResolvedTask is the outcome of ResolveTask. When Applied is false the task
// was no longer awaiting review and Task carries its current status.
type ResolvedTask struct {
	Task          models.Task
	Video         models.Video
	Applied       bool
	StrikedUserID int64
	Strikes       int
}
