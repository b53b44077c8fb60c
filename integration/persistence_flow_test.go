package integration

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/ironvalemmo/server/model"
	"github.com/ironvalemmo/server/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func adminDo(t *testing.T, ts *TestServer, method, path string) []byte {
	t.Helper()
	req, err := http.NewRequest(method, ts.URL+path, nil)
	require.NoError(t, err)
	req.Header.Set("X-Admin-Key", AdminKey)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode, "%s %s", method, path)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return body
}

// The canonical round trip: a new player enters, trains, disconnects,
// and comes back to exactly the state they left.
func TestPersistenceRoundTrip(t *testing.T) {
	ts := NewTestServer(t)
	ctx := context.Background()

	st, err := ts.Manager.HandleEnter(ctx, "steam-123", "Arden")
	require.NoError(t, err)
	assert.Equal(t, 100, st.MaxHP)
	assert.Equal(t, store.DefaultWeaponItemID, st.Equipment[model.EquipSlotWeapon])

	sessionID, err := ts.Coord.HandlePlayerEntered("steam-123", st.DBID, "token-a")
	require.NoError(t, err)
	require.NotEmpty(t, sessionID)

	// train attack to 15
	require.NoError(t, ts.Manager.UpdateStats(ctx, "steam-123", model.SkillAttack, 15, 2411))
	require.NoError(t, ts.Manager.UpdatePosition("steam-123", 120, 68, -45))

	ts.Manager.HandleLeave(ctx, "steam-123")
	ts.Coord.HandlePlayerLeft("steam-123", model.DisconnectReasonDisconnect)

	active, err := ts.Store.GetActiveSessions()
	require.NoError(t, err)
	assert.Empty(t, active)

	// reconnect: everything survives the round trip
	st, err = ts.Manager.HandleEnter(ctx, "steam-123", "Arden")
	require.NoError(t, err)
	assert.Equal(t, 15, st.Skills[model.SkillAttack].Level)
	assert.Equal(t, int64(2411), st.Skills[model.SkillAttack].XP)
	assert.Equal(t, 120.0, st.Pos.X)
	assert.Equal(t, -45.0, st.Pos.Z)
	assert.Equal(t, store.DefaultWeaponItemID, st.Equipment[model.EquipSlotWeapon])
}

func TestReconnectSupersedesSession(t *testing.T) {
	ts := NewTestServer(t)
	ctx := context.Background()

	st, err := ts.Manager.HandleEnter(ctx, "p1", "Brin")
	require.NoError(t, err)
	first, err := ts.Coord.HandlePlayerEntered("p1", st.DBID, "tok-1")
	require.NoError(t, err)

	// the client crashes and reconnects; no clean exit ever arrived
	second, err := ts.Coord.HandlePlayerEntered("p1", st.DBID, "tok-2")
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	active, err := ts.Store.GetActiveSessionsForPlayer(st.DBID)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, second, active[0].ID)
}

func TestAdminDrivenWorldLifecycle(t *testing.T) {
	ts := NewTestServer(t)
	ctx := context.Background()

	st, err := ts.Manager.HandleEnter(ctx, "p1", "Cass")
	require.NoError(t, err)
	_, err = ts.Coord.HandlePlayerEntered("p1", st.DBID, "tok")
	require.NoError(t, err)

	require.NoError(t, ts.Store.SaveChunk(&model.WorldChunk{ChunkX: 0, ChunkZ: 0, Biome: "plains"}))
	require.NoError(t, ts.Coord.HandleChunkEntered("p1", st.DBID, 0, 0))

	body := adminDo(t, ts, http.MethodGet, "/api/admin/database")
	var dbStats store.Stats
	require.NoError(t, json.Unmarshal(body, &dbStats))
	assert.Equal(t, int64(1), dbStats.PlayerCount)
	assert.Equal(t, int64(1), dbStats.ActiveSessionCount)
	assert.Equal(t, int64(1), dbStats.ActiveChunkCount)

	// an occupied chunk never gets cleaned up
	adminDo(t, ts, http.MethodPost, "/api/admin/chunk-cleanup")
	chunk, err := ts.Store.GetChunk(0, 0)
	require.NoError(t, err)
	require.NotNil(t, chunk)
	assert.False(t, chunk.NeedsReset)

	// the player leaves; a forced save then a cleanup pass still leave
	// the recently active chunk alone (idle threshold not reached)
	ts.Manager.HandleLeave(ctx, "p1")
	ts.Coord.HandlePlayerLeft("p1", model.DisconnectReasonDisconnect)
	adminDo(t, ts, http.MethodPost, "/api/admin/save")
	adminDo(t, ts, http.MethodPost, "/api/admin/chunk-cleanup")
	chunk, err = ts.Store.GetChunk(0, 0)
	require.NoError(t, err)
	require.NotNil(t, chunk)
}

func TestHealthAndAuth(t *testing.T) {
	ts := NewTestServer(t)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// admin without the key is rejected
	resp, err = http.Post(ts.URL+"/api/admin/save", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
