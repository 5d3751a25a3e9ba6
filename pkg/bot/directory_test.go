// Copyright 2024-2026 Aiku AI

package bot

import "testing"

func TestNewDirectory(t *testing.T) {
	t.Parallel()
	d := NewDirectory(testUsers, testChannels, nopLogger())

	if d.UserCount() != len(testUsers) || d.ChannelCount() != len(testChannels) {
		t.Errorf("counts = %d users, %d channels", d.UserCount(), d.ChannelCount())
	}
	if u, ok := d.User("UALICE"); !ok || u.RealName != "Alice Liddell" {
		t.Errorf("User(UALICE) = %+v, %v", u, ok)
	}
	if id, ok := d.DirectMessage("UALICE"); !ok || id != "D1" {
		t.Errorf("DirectMessage(UALICE) = %q, %v", id, ok)
	}
	if _, ok := d.DirectMessage("UGHOST"); ok {
		t.Error("direct message channel of an unknown user was preloaded")
	}
	if !d.Consistent() {
		t.Error("fresh directory is not consistent")
	}
}

func TestDirectoryFindByName(t *testing.T) {
	t.Parallel()
	d := NewDirectory(
		[]User{{ID: "U1", Name: "sam"}, {ID: "U2", Name: "sam"}},
		[]Channel{{ID: "C1", Name: "ops"}, {ID: "C2", Name: "ops"}, {ID: "D9", IsIM: true, User: "U2"}},
		nopLogger(),
	)
	if id, _ := d.FindUserByName("sam"); id != "U1" {
		t.Errorf("FindUserByName picked %q, want the first listed", id)
	}
	if id, _ := d.FindChannelByName("ops"); id != "C1" {
		t.Errorf("FindChannelByName picked %q, want the first listed", id)
	}
	// Direct message channels are named after their user.
	if id, ok := d.FindChannelByName("sam"); !ok || id != "D9" {
		t.Errorf("FindChannelByName(sam) = %q, %v", id, ok)
	}
	if _, ok := d.FindUserByName("nobody"); ok {
		t.Error("found a user that does not exist")
	}
}

func TestStoreDirectMessageFirstWins(t *testing.T) {
	t.Parallel()
	d := NewDirectory(testUsers, testChannels, nopLogger())
	if got := d.storeDirectMessage("UBOB", "DB1"); got != "DB1" {
		t.Errorf("first store returned %q", got)
	}
	if got := d.storeDirectMessage("UBOB", "DB2"); got != "DB1" {
		t.Errorf("second store returned %q, want the first id", got)
	}
	if got := d.storeDirectMessage("UALICE", "DX"); got != "D1" {
		t.Errorf("store over a preloaded channel returned %q", got)
	}
	if !d.IsDirectMessage("DB1") || !d.IsDirectMessage("D1") {
		t.Error("stored channels are not known as direct messages")
	}
	if d.IsDirectMessage("DB2") || d.IsDirectMessage("DX") || d.IsDirectMessage("DGHOST") {
		t.Error("losing or skipped channels are known as direct messages")
	}
}
