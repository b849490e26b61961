package sessions

import "testing"

func TestPutReplaceRemove(t *testing.T) {
    s := NewStore()
    a := s.Create("r1", "alice", func() string { return "LISTENING" })
    if prev := s.Put(a); prev != nil {
        t.Fatalf("unexpected previous session")
    }
    got, ok := s.Get("r1")
    if !ok || got.Identity != "alice" || got.State != "LISTENING" {
        t.Fatalf("get: %+v %v", got, ok)
    }

    b := s.Create("r1", "bob", nil)
    if prev := s.Put(b); prev == nil || prev.ID != a.ID {
        t.Fatalf("expected alice to be replaced")
    }
    // A stale remove must not drop the replacement.
    s.Remove(a)
    if got, ok := s.Get("r1"); !ok || got.Identity != "bob" {
        t.Fatalf("replacement lost: %+v", got)
    }
    s.Remove(b)
    if _, ok := s.Get("r1"); ok {
        t.Fatalf("expected r1 gone")
    }
}

func TestListSorted(t *testing.T) {
    s := NewStore()
    s.Put(s.Create("b", "x", nil))
    s.Put(s.Create("a", "y", nil))
    l := s.List()
    if len(l) != 2 || l[0].Room != "a" || l[1].Room != "b" {
        t.Fatalf("list: %+v", l)
    }
}
