package router

import (
	"sync"

	"github.com/google/uuid"
)

// TaskMap implements the §3 "tasks" registry: parentTaskId -> (uri ->
// childTaskId). It gives repeated Agent.Execute calls for the same
// (parentTaskId, uri) pair the same child task id for the parent's
// lifetime ("session stickiness", §8). All mutations, for every parent, are
// serialized by one mutex so that concurrent calls within one Manager.call dispatch to distinct
// agent URIs without racing, matching the linearisable-per-uri discipline
// §5 requires.
type TaskMap struct {
	mu sync.Mutex
	m  map[string]map[string]string
}

// NewTaskMap returns an empty TaskMap.
func NewTaskMap() *TaskMap {
	return &TaskMap{m: make(map[string]map[string]string)}
}

// ChildTaskID returns the sticky child task id for (parentTaskID, uri),
// minting one with uuid.New if this is the first call for that pair.
func (t *TaskMap) ChildTaskID(parentTaskID, uri string) string {
	t.mu.Lock()
	defer t.mu.Unlock()

	children, ok := t.m[parentTaskID]
	if !ok {
		children = make(map[string]string)
		t.m[parentTaskID] = children
	}

	id, ok := children[uri]
	if !ok {
		id = uuid.New().String()
		children[uri] = id
	}
	return id
}

// ReferenceIDs returns every child task id minted so far for parentTaskID,
// suitable for a referenceTaskIds union (§4.2 step 3).
func (t *TaskMap) ReferenceIDs(parentTaskID string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	children := t.m[parentTaskID]
	ids := make([]string, 0, len(children))
	for _, id := range children {
		ids = append(ids, id)
	}
	return ids
}
