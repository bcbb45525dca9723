package trace

import (
	"testing"
)

func TestLog_AppendBatch_PreservesOrder(t *testing.T) {
	// GIVEN an empty log
	l := NewLog()

	// WHEN two step batches are appended
	l.AppendBatch(&StepBatch{
		RunID:  0,
		Step:   0,
		States: []AgentStateRecord{{AgentID: 0, State: StateInfected}, {AgentID: 1, State: StateSusceptible}},
	})
	l.AppendBatch(&StepBatch{
		RunID:      0,
		Step:       1,
		States:     []AgentStateRecord{{Step: 1, AgentID: 0, State: StateInfected}, {Step: 1, AgentID: 1, State: StateInfected}},
		Infections: []InfectionEventRecord{{Step: 1, InfectorAgentID: 0, InfectedAgentID: 1, LapsedInfectionTime: 1}},
	})

	// THEN records appear in append order
	if len(l.States) != 4 {
		t.Fatalf("expected 4 state records, got %d", len(l.States))
	}
	if l.States[2].Step != 1 || l.States[2].AgentID != 0 {
		t.Errorf("state order not preserved: %+v", l.States[2])
	}
	if len(l.Infections) != 1 || l.Infections[0].InfectedAgentID != 1 {
		t.Errorf("infection record mismatch: %+v", l.Infections)
	}
}

func TestLog_Append_ConcatenatesPartitions(t *testing.T) {
	// GIVEN two run partitions
	a := NewLog()
	a.AppendBatch(&StepBatch{RunID: 0, States: []AgentStateRecord{{RunID: 0}}})
	b := NewLog()
	b.AppendBatch(&StepBatch{RunID: 1, States: []AgentStateRecord{{RunID: 1}}, Infections: []InfectionEventRecord{{RunID: 1}}})

	// WHEN merged
	a.Append(b)

	// THEN run 0 precedes run 1
	if len(a.States) != 2 || a.States[0].RunID != 0 || a.States[1].RunID != 1 {
		t.Errorf("unexpected merged states: %+v", a.States)
	}
	if len(a.Infections) != 1 {
		t.Errorf("expected 1 infection, got %d", len(a.Infections))
	}
}

func TestStepBatch_Len(t *testing.T) {
	b := &StepBatch{
		States:     make([]AgentStateRecord, 3),
		Infections: make([]InfectionEventRecord, 2),
	}
	if b.Len() != 5 {
		t.Errorf("Len() = %d, want 5", b.Len())
	}
}
