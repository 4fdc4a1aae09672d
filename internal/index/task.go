package index

import (
	"github.com/Aman-CERP/wordindex/internal/store"
)

// Group is a priority class. Lower groups are always applied first.
type Group int

const (
	// GroupStructural holds file and directory sync/remove tasks.
	GroupStructural Group = iota
	// GroupContent holds word additions and removals.
	GroupContent
	// GroupCompletion holds processing-finished notifications.
	GroupCompletion

	numGroups = 3
)

// String returns the group name used in logs and metrics.
func (g Group) String() string {
	switch g {
	case GroupStructural:
		return "structural"
	case GroupContent:
		return "content"
	case GroupCompletion:
		return "completion"
	default:
		return "unknown"
	}
}

// TaskKind identifies an index mutation.
type TaskKind int

const (
	TaskSyncFile TaskKind = iota
	TaskSyncDirectory
	TaskRemoveFile
	TaskRemoveDirectory
	TaskAddWord
	TaskRemoveWords
	TaskProcessingFinished
)

// String returns the kebab-case task name.
func (k TaskKind) String() string {
	switch k {
	case TaskSyncFile:
		return "sync-file"
	case TaskSyncDirectory:
		return "sync-directory"
	case TaskRemoveFile:
		return "remove-file"
	case TaskRemoveDirectory:
		return "remove-directory"
	case TaskAddWord:
		return "add-word"
	case TaskRemoveWords:
		return "remove-words"
	case TaskProcessingFinished:
		return "processing-finished"
	default:
		return "unknown"
	}
}

// Group returns the priority group of the kind.
func (k TaskKind) Group() Group {
	switch k {
	case TaskAddWord, TaskRemoveWords:
		return GroupContent
	case TaskProcessingFinished:
		return GroupCompletion
	default:
		return GroupStructural
	}
}

// Task is one queued index mutation.
type Task struct {
	Kind TaskKind
	Path string
	// Word is set for TaskAddWord.
	Word string
	// Stamp is the event stamp for sync tasks and the pass start stamp
	// for TaskProcessingFinished.
	Stamp store.Stamp
	// Success is set for TaskProcessingFinished.
	Success bool
	// Seq is assigned at admission and orders tasks within a group.
	Seq uint64
}
