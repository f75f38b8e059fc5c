package events

import (
	"context"
	stdsql "database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/ghmbegerez/converge/pkg/database"
	"github.com/ghmbegerez/converge/pkg/models"
	storepg "github.com/ghmbegerez/converge/pkg/store/postgres"
	"github.com/ghmbegerez/converge/test/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// liveTestEnv holds all wired-up components for an integration test driving
// PostgreSQL NOTIFY/LISTEN end to end: EventPublisher appends a NOTIFY,
// NotifyListener receives it and hands it to ConnectionManager, which
// fans it out to connected WebSocket clients.
type liveTestEnv struct {
	store     *storepg.Store
	publisher *EventPublisher
	manager   *ConnectionManager
	listener  *NotifyListener
	server    *httptest.Server
}

// setupLiveTest provisions an isolated schema on the shared test PostgreSQL
// instance and wires real components together — no mocks between publisher,
// listener, and manager.
func setupLiveTest(t *testing.T) *liveTestEnv {
	t.Helper()
	ctx := context.Background()

	baseConnStr := util.GetBaseConnectionString(t)
	schemaName := util.GenerateSchemaName(t)

	setupDB, err := stdsql.Open("pgx", baseConnStr)
	require.NoError(t, err)
	_, err = setupDB.ExecContext(ctx, fmt.Sprintf("CREATE SCHEMA %s", schemaName))
	require.NoError(t, err)
	_ = setupDB.Close()

	connStr := util.AddSearchPathToConnString(baseConnStr, schemaName)
	db, err := stdsql.Open("pgx", connStr)
	require.NoError(t, err)
	require.NoError(t, database.ApplyRawSchema(ctx, db))

	t.Cleanup(func() {
		_ = db.Close()
		cleanDB, err := stdsql.Open("pgx", baseConnStr)
		if err == nil {
			_, _ = cleanDB.ExecContext(context.Background(), fmt.Sprintf("DROP SCHEMA IF EXISTS %s CASCADE", schemaName))
			_ = cleanDB.Close()
		}
	})

	pgStore := storepg.New(db)
	publisher := NewEventPublisher(db)
	adapter := NewEventServiceAdapter(pgStore)
	manager := NewConnectionManager(adapter, 5*time.Second)

	listener := NewNotifyListener(connStr, manager)
	require.NoError(t, listener.Start(ctx))
	t.Cleanup(func() { listener.Stop(context.Background()) })
	manager.SetListener(listener)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
		if err != nil {
			return
		}
		manager.HandleConnection(r.Context(), conn)
	}))
	t.Cleanup(server.Close)

	return &liveTestEnv{store: pgStore, publisher: publisher, manager: manager, listener: listener, server: server}
}

func TestIntegration_PublishDeliversOverWebSocket(t *testing.T) {
	env := setupLiveTest(t)
	ctx := context.Background()

	url := "ws" + env.server.URL[len("http"):]
	dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(dialCtx, url, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	readJSONMsg := func() map[string]interface{} {
		readCtx, readCancel := context.WithTimeout(ctx, 5*time.Second)
		defer readCancel()
		_, data, err := conn.Read(readCtx)
		require.NoError(t, err)
		var msg map[string]interface{}
		require.NoError(t, json.Unmarshal(data, &msg))
		return msg
	}

	readJSONMsg() // connection.established

	subMsg, _ := json.Marshal(ClientMessage{Action: "subscribe", Channel: GlobalChannel})
	writeCtx, writeCancel := context.WithTimeout(ctx, 5*time.Second)
	require.NoError(t, conn.Write(writeCtx, websocket.MessageText, subMsg))
	writeCancel()

	confirmed := readJSONMsg()
	require.Equal(t, "subscription.confirmed", confirmed["type"])

	intentID := "intent-live-1"
	evt, err := env.store.AppendEvent(ctx, models.NewEvent(models.EventIntentMerged, map[string]any{"sha": "deadbeef"}))
	require.NoError(t, err)
	evt.IntentID = &intentID

	require.NoError(t, env.publisher.Publish(ctx, evt))

	msg := readJSONMsg()
	assert.Equal(t, GlobalChannel, msg["channel"])
	event, ok := msg["event"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, string(models.EventIntentMerged), event["event_type"])
}

func TestIntegration_CatchupAfterMissedEvents(t *testing.T) {
	env := setupLiveTest(t)
	ctx := context.Background()

	// Append events before any subscriber connects.
	var since string
	for i := 0; i < 3; i++ {
		evt, err := env.store.AppendEvent(ctx, models.NewEvent(models.EventQueueProcessed, map[string]any{"seq": i}))
		require.NoError(t, err)
		if i == 0 {
			since = evt.Timestamp
		}
	}

	url := "ws" + env.server.URL[len("http"):]
	dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(dialCtx, url, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	readJSONMsg := func() map[string]interface{} {
		readCtx, readCancel := context.WithTimeout(ctx, 5*time.Second)
		defer readCancel()
		_, data, err := conn.Read(readCtx)
		require.NoError(t, err)
		var msg map[string]interface{}
		require.NoError(t, json.Unmarshal(data, &msg))
		return msg
	}

	readJSONMsg() // connection.established

	// Explicit catchup request since the first event's timestamp should
	// return the two that followed it.
	lastTimestamp := since
	catchupMsg, _ := json.Marshal(ClientMessage{Action: "catchup", Channel: GlobalChannel, LastTimestamp: &lastTimestamp})
	writeCtx, writeCancel := context.WithTimeout(ctx, 5*time.Second)
	require.NoError(t, conn.Write(writeCtx, websocket.MessageText, catchupMsg))
	writeCancel()

	msg := readJSONMsg()
	assert.Equal(t, GlobalChannel, msg["channel"])
}
