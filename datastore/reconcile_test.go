package datastore

import (
	"testing"

	"projectflow/gateway"
	"projectflow/profile"
)

func TestApplyInsertKeepsNewestFirst(t *testing.T) {
	e := newEnv(t)
	e.db.seed(gateway.TableProfiles, profRow("admin-1", profile.RoleAdmin, "Paula", at(0)))
	e.db.seed(gateway.TableProjects,
		projRow("p1", "client-1", at(1)),
		projRow("p2", "client-1", at(2)),
		projRow("p3", "client-1", at(3)),
	)
	e.start(t)
	e.signIn(t, "admin-1")

	// A row created between p2 and p3 lands between them, not at an end.
	e.rt.emit(gateway.ChangeEvent{
		Table: gateway.TableProjects,
		Kind:  gateway.ChangeInsert,
		New:   projRow("p2.5", "client-1", at(2).Add(500_000_000)),
	})

	projects := e.store.Projects()
	if len(projects) != 4 {
		t.Fatalf("projects = %d, want 4", len(projects))
	}
	for i, want := range []string{"p3", "p2.5", "p2", "p1"} {
		if projects[i].ID != want {
			t.Errorf("projects[%d] = %s, want %s", i, projects[i].ID, want)
		}
	}
}

func TestApplyIsIdempotent(t *testing.T) {
	e := newEnv(t)
	e.db.seed(gateway.TableProfiles, profRow("admin-1", profile.RoleAdmin, "Paula", at(0)))
	e.start(t)
	e.signIn(t, "admin-1")

	ev := gateway.ChangeEvent{
		Table: gateway.TableProjects,
		Kind:  gateway.ChangeInsert,
		New:   projRow("p1", "client-1", at(1)),
	}
	e.rt.emit(ev)
	e.rt.emit(ev)
	if got := e.store.Projects(); len(got) != 1 {
		t.Fatalf("duplicate insert produced %d copies", len(got))
	}

	upd := projRow("p1", "client-1", at(1))
	upd["name"] = "Renamed"
	for i := 0; i < 2; i++ {
		e.rt.emit(gateway.ChangeEvent{Table: gateway.TableProjects, Kind: gateway.ChangeUpdate, New: upd})
	}
	got := e.store.Projects()
	if len(got) != 1 || got[0].Name != "Renamed" {
		t.Errorf("after duplicate update: %+v", got)
	}
}

func TestApplyDeleteAbsentIsNoop(t *testing.T) {
	e := newEnv(t)
	e.db.seed(gateway.TableProfiles, profRow("admin-1", profile.RoleAdmin, "Paula", at(0)))
	e.db.seed(gateway.TableProjects, projRow("p1", "client-1", at(1)))
	e.start(t)
	e.signIn(t, "admin-1")

	e.rt.emit(gateway.ChangeEvent{
		Table: gateway.TableProjects,
		Kind:  gateway.ChangeDelete,
		Old:   gateway.Row{"id": "never-seen"},
	})
	if got := e.store.Projects(); len(got) != 1 || got[0].ID != "p1" {
		t.Errorf("delete of an absent row changed the cache: %+v", got)
	}
}

func TestApplyFiltersForeignRowsForClients(t *testing.T) {
	e := newEnv(t)
	e.db.seed(gateway.TableProfiles, profRow("client-1", profile.RoleClient, "Carlos", at(0)))
	e.start(t)
	e.signIn(t, "client-1")

	e.rt.emit(gateway.ChangeEvent{
		Table: gateway.TableProjects,
		Kind:  gateway.ChangeInsert,
		New:   projRow("foreign", "client-2", at(1)),
	})
	e.rt.emit(gateway.ChangeEvent{
		Table: gateway.TableAssistance,
		Kind:  gateway.ChangeInsert,
		New:   reqRow("foreign-req", "client-2", "foreign", at(2)),
	})
	e.rt.emit(gateway.ChangeEvent{
		Table: gateway.TableProjects,
		Kind:  gateway.ChangeInsert,
		New:   projRow("mine", "client-1", at(3)),
	})

	if got := e.store.Projects(); len(got) != 1 || got[0].ID != "mine" {
		t.Errorf("projects = %+v, want only the session's own", got)
	}
	if got := e.store.AssistanceRequests(); len(got) != 0 {
		t.Errorf("requests = %+v, want none", got)
	}
}

func TestApplyIgnoresRoleFlips(t *testing.T) {
	e := newEnv(t)
	e.db.seed(gateway.TableProfiles,
		profRow("admin-1", profile.RoleAdmin, "Paula", at(0)),
		profRow("client-1", profile.RoleClient, "Carlos", at(1)),
	)
	e.start(t)
	e.signIn(t, "admin-1")

	e.rt.emit(gateway.ChangeEvent{
		Table: gateway.TableProfiles,
		Kind:  gateway.ChangeUpdate,
		New:   profRow("client-1", profile.RoleAdmin, "Carlos Promoted", at(1)),
	})

	if got := e.store.Clients(); len(got) != 1 || got[0].Name != "Carlos" {
		t.Errorf("clients = %+v, role flip must be ignored", got)
	}
	if got := e.store.Admins(); len(got) != 1 {
		t.Errorf("admins = %+v, role flip must not add a copy", got)
	}
	if !e.errs.contains("ignoring role change") {
		t.Error("error hook missed the rejected role change")
	}
}

func TestApplyRefreshesOwnProfile(t *testing.T) {
	e := newEnv(t)
	e.db.seed(gateway.TableProfiles, profRow("client-1", profile.RoleClient, "Carlos", at(0)))
	e.start(t)
	e.signIn(t, "client-1")

	e.rt.emit(gateway.ChangeEvent{
		Table: gateway.TableProfiles,
		Kind:  gateway.ChangeUpdate,
		New:   profRow("client-1", profile.RoleClient, "Carlos Renamed", at(0)),
	})

	prof := e.store.UserProfile()
	if prof == nil || prof.Name != "Carlos Renamed" {
		t.Errorf("profile = %+v, want the refreshed copy", prof)
	}
	if len(e.store.Clients()) != 0 {
		t.Error("a client session must not populate the profile collections")
	}
}

func TestApplyProfileDeleteDropsCachedCopy(t *testing.T) {
	e := newEnv(t)
	e.db.seed(gateway.TableProfiles,
		profRow("admin-1", profile.RoleAdmin, "Paula", at(0)),
		profRow("client-1", profile.RoleClient, "Carlos", at(1)),
	)
	e.start(t)
	e.signIn(t, "admin-1")

	e.rt.emit(gateway.ChangeEvent{
		Table: gateway.TableProfiles,
		Kind:  gateway.ChangeDelete,
		Old:   gateway.Row{"id": "client-1"},
	})
	if got := e.store.Clients(); len(got) != 0 {
		t.Errorf("clients = %+v, want none after delete", got)
	}
}

func TestApplyMalformedEventReported(t *testing.T) {
	e := newEnv(t)
	e.db.seed(gateway.TableProfiles, profRow("admin-1", profile.RoleAdmin, "Paula", at(0)))
	e.start(t)
	e.signIn(t, "admin-1")

	e.rt.emit(gateway.ChangeEvent{
		Table: gateway.TableProjects,
		Kind:  gateway.ChangeInsert,
		New:   gateway.Row{"id": "broken", "status": "No Such Stage"},
	})
	if len(e.store.Projects()) != 0 {
		t.Error("malformed event must not enter the cache")
	}
	if !e.errs.contains("project event") {
		t.Error("error hook missed the malformed event")
	}
}
