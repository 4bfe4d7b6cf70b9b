// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package spipe

import (
	"errors"
	"testing"
)

func TestPolicyDefaults(t *testing.T) {
	p := NewPolicy()
	if p.NumThreads != 1 {
		t.Fatalf("NumThreads = %d, want 1", p.NumThreads)
	}
	if p.QueueSize != 64 {
		t.Fatalf("QueueSize = %d, want 64", p.QueueSize)
	}
	if p.QueueMode != LockFree {
		t.Fatalf("QueueMode = %v, want LockFree", p.QueueMode)
	}
	if p.Ordering != Unordered {
		t.Fatalf("Ordering = %v, want Unordered", p.Ordering)
	}
	if err := p.validate(); err != nil {
		t.Fatalf("validate(): %v", err)
	}
}

func TestPolicyFluentSetters(t *testing.T) {
	p := NewPolicy()
	p.SetConcurrencyDegree(4).SetQueueSize(128).EnableOrdering().SetQueueMode(Blocking)

	if p.NumThreads != 4 || p.QueueSize != 128 || p.Ordering != Ordered || p.QueueMode != Blocking {
		t.Fatalf("unexpected policy after chained setters: %+v", p)
	}

	p.DisableOrdering()
	if p.Ordering != Unordered {
		t.Fatalf("Ordering after DisableOrdering = %v, want Unordered", p.Ordering)
	}
}

func TestPolicyValidateRejectsBadThreadCount(t *testing.T) {
	p := NewPolicy()
	p.SetConcurrencyDegree(0)
	if err := p.validate(); !errors.Is(err, ErrInvalidThreadCount) {
		t.Fatalf("validate() = %v, want ErrInvalidThreadCount", err)
	}
}

func TestPolicyValidateRejectsBadQueueSize(t *testing.T) {
	p := NewPolicy()
	p.SetQueueSize(0)
	if err := p.validate(); !errors.Is(err, ErrInvalidQueueSize) {
		t.Fatalf("validate() = %v, want ErrInvalidQueueSize", err)
	}
}

func TestPolicyRegisterDeregisterThreadDefaultsToNoop(t *testing.T) {
	p := NewPolicy()
	// Must not panic when the hooks are unset.
	p.registerThread(0)
	p.deregisterThread(0)
}

func TestPolicyRegisterDeregisterThreadInvokesHooks(t *testing.T) {
	var registered, deregistered []int
	p := NewPolicy()
	p.RegisterThread = func(id int) { registered = append(registered, id) }
	p.DeregisterThread = func(id int) { deregistered = append(deregistered, id) }

	p.registerThread(3)
	p.deregisterThread(3)

	if len(registered) != 1 || registered[0] != 3 {
		t.Fatalf("registered = %v, want [3]", registered)
	}
	if len(deregistered) != 1 || deregistered[0] != 3 {
		t.Fatalf("deregistered = %v, want [3]", deregistered)
	}
}
