package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"baseQuestAPI/internal/chain"
	"baseQuestAPI/internal/epoch"
	"baseQuestAPI/internal/leaderboard"
	"baseQuestAPI/internal/ledger"
	"baseQuestAPI/internal/player"
	"baseQuestAPI/internal/task"
	"baseQuestAPI/internal/week"
	"baseQuestAPI/middleware"
	"baseQuestAPI/services"
)

var (
	launch  = time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)
	fee     = big.NewInt(10_000_000_000_000)
	curator = common.HexToAddress("0xC000000000000000000000000000000000000001")
	alice   = common.HexToAddress("0xA000000000000000000000000000000000000001")
	bob     = common.HexToAddress("0xB000000000000000000000000000000000000002")
)

const testWalletHeader = "X-Test-Wallet"

type testAPI struct {
	game   *services.GameService
	router *mux.Router
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	store := ledger.NewMemoryStore(week.NewState(launch, fee))
	roles := services.NewRoles([]common.Address{curator}, common.Address{})
	game := services.NewGameService(store, epoch.NewSchedule(launch), epoch.NewManualClock(launch.Add(time.Hour)), roles)
	game.SetPaymentVerifier(chain.TrustedVerifier{})

	gh := NewGameHandler(game)
	th := NewTaskHandler(game)
	ph := NewPlayerHandler(game)

	r := mux.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if raw := req.Header.Get(testWalletHeader); raw != "" {
				caller := roles.CallerFor(common.HexToAddress(raw))
				req = req.WithContext(middleware.WithCaller(req.Context(), caller))
			}
			next.ServeHTTP(w, req)
		})
	})

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/game", gh.GetGame).Methods("GET")
	api.HandleFunc("/leaderboard", gh.GetLeaderboard).Methods("GET")
	api.HandleFunc("/weeks/{week}/snapshot", gh.GetWeekSnapshot).Methods("GET")
	api.HandleFunc("/events", gh.GetEvents).Methods("GET")
	api.HandleFunc("/week/join", gh.JoinWeek).Methods("POST")
	api.HandleFunc("/tasks", th.AddTask).Methods("POST")
	api.HandleFunc("/tasks/current", th.GetCurrentTasks).Methods("GET")
	api.HandleFunc("/tasks/daily", th.GetDailyTasks).Methods("GET")
	api.HandleFunc("/tasks/{taskID}/complete", th.CompleteTask).Methods("POST")
	api.HandleFunc("/tasks/{taskID}/active", th.SetTaskActive).Methods("PUT")
	api.HandleFunc("/weeks/{week}/tasks", th.GetWeekTasks).Methods("GET")
	api.HandleFunc("/players/{address}", ph.GetPlayer).Methods("GET")
	api.HandleFunc("/players/{address}/status", ph.GetPlayerStatus).Methods("GET")
	api.HandleFunc("/players/{address}/day-reset", ph.GetDayReset).Methods("GET")

	return &testAPI{game: game, router: r}
}

func (a *testAPI) do(t *testing.T, method, path string, as *common.Address, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if as != nil {
		req.Header.Set(testWalletHeader, as.Hex())
	}
	rr := httptest.NewRecorder()
	a.router.ServeHTTP(rr, req)
	return rr
}

func (a *testAPI) addTask(t *testing.T, typ task.Type, reward uint64) task.Task {
	t.Helper()
	rr := a.do(t, "POST", "/api/v1/tasks", &curator, task.NewTaskRequest{
		Description:      "follow the account",
		TaskType:         string(typ),
		BasePointsReward: reward,
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var created task.Task
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&created))
	return created
}

func (a *testAPI) join(t *testing.T, who common.Address) {
	t.Helper()
	rr := a.do(t, "POST", "/api/v1/week/join", &who, map[string]string{"amount_wei": fee.String()})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	return body["error"]
}

func TestJoinWeek(t *testing.T) {
	tests := []struct {
		name       string
		as         *common.Address
		body       interface{}
		wantStatus int
	}{
		{"no wallet", nil, map[string]string{"amount_wei": fee.String()}, http.StatusUnauthorized},
		{"empty body", &alice, map[string]string{}, http.StatusBadRequest},
		{"malformed amount", &alice, map[string]string{"amount_wei": "1e18"}, http.StatusBadRequest},
		{"fee too low", &alice, map[string]string{"amount_wei": "9999999999999"}, http.StatusPaymentRequired},
		{"exact fee", &alice, map[string]string{"amount_wei": fee.String()}, http.StatusCreated},
		{"second join", &alice, map[string]string{"amount_wei": fee.String()}, http.StatusConflict},
	}

	a := newTestAPI(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := a.do(t, "POST", "/api/v1/week/join", tt.as, tt.body)
			assert.Equal(t, tt.wantStatus, rr.Code, rr.Body.String())
		})
	}

	pool, err := a.game.WeeklyPrizePool(context.Background())
	require.NoError(t, err)
	assert.Equal(t, fee.String(), pool.String())
}

func TestGetGame(t *testing.T) {
	a := newTestAPI(t)
	a.join(t, alice)

	rr := a.do(t, "GET", "/api/v1/game", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var info week.GameInfo
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&info))
	assert.Equal(t, fee.String(), info.EntryFeeWei)
	assert.Equal(t, fee.String(), info.WeeklyPrizePoolWei)
	assert.Equal(t, int64((7*24*time.Hour-time.Hour)/time.Second), info.TimeUntilWeekEnd)
}

func TestCompleteTask(t *testing.T) {
	a := newTestAPI(t)
	onchain := a.addTask(t, task.TypeOnchain, 10)
	offchain := a.addTask(t, task.TypeOffchain, 10)

	rr := a.do(t, "POST", fmt.Sprintf("/api/v1/tasks/%d/complete", onchain.ID), &alice, nil)
	assert.Equal(t, http.StatusForbidden, rr.Code, "not joined yet")

	a.join(t, alice)

	rr = a.do(t, "POST", fmt.Sprintf("/api/v1/tasks/%d/complete", onchain.ID), &alice, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var res services.Completion
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&res))
	assert.Equal(t, uint64(10), res.PointsEarned)
	assert.True(t, res.StreakUpdated)

	rr = a.do(t, "POST", fmt.Sprintf("/api/v1/tasks/%d/complete", offchain.ID), &alice, nil)
	assert.Equal(t, http.StatusForbidden, rr.Code, "offchain needs an attestation")

	rr = a.do(t, "POST", "/api/v1/tasks/99/complete", &alice, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = a.do(t, "POST", "/api/v1/tasks/abc/complete", &alice, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCompleteTask_DailyLimit(t *testing.T) {
	a := newTestAPI(t)
	tk := a.addTask(t, task.TypeOnchain, 5)
	a.join(t, alice)

	path := fmt.Sprintf("/api/v1/tasks/%d/complete", tk.ID)
	for i := 0; i < player.MaxTasksPerDay; i++ {
		rr := a.do(t, "POST", path, &alice, nil)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	}

	rr := a.do(t, "POST", path, &alice, nil)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.NotEmpty(t, decodeError(t, rr))
}

func TestTaskCuration(t *testing.T) {
	a := newTestAPI(t)

	rr := a.do(t, "POST", "/api/v1/tasks", &alice, task.NewTaskRequest{
		Description: "x", TaskType: "onchain", BasePointsReward: 1,
	})
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = a.do(t, "POST", "/api/v1/tasks", &curator, task.NewTaskRequest{
		Description: "x", TaskType: "sideways", BasePointsReward: 1,
	})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = a.do(t, "POST", "/api/v1/tasks", &curator, task.NewTaskRequest{
		Description: "x", TaskType: "onchain", BasePointsReward: task.MaxBasePointsReward + 1,
	})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	tk := a.addTask(t, task.TypeHybrid, 7)

	rr = a.do(t, "PUT", fmt.Sprintf("/api/v1/tasks/%d/active", tk.ID), &curator, task.SetActiveRequest{IsActive: false})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = a.do(t, "GET", "/api/v1/tasks/current", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var current struct {
		Week  uint64      `json:"week"`
		Tasks []task.Task `json:"tasks"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&current))
	assert.Equal(t, uint64(0), current.Week)
	require.Len(t, current.Tasks, 1)
	assert.False(t, current.Tasks[0].IsActive)

	rr = a.do(t, "GET", "/api/v1/weeks/0/tasks", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = a.do(t, "GET", "/api/v1/weeks/minus-one/tasks", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestGetDailyTasks(t *testing.T) {
	a := newTestAPI(t)
	for i := 0; i < 5; i++ {
		a.addTask(t, task.TypeOnchain, uint64(i+1))
	}

	rr := a.do(t, "GET", "/api/v1/tasks/daily", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = a.do(t, "GET", "/api/v1/tasks/daily", &alice, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var mine []task.Task
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&mine))
	assert.Len(t, mine, 3)

	rr = a.do(t, "GET", "/api/v1/tasks/daily?count=2&address="+alice.Hex(), nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var two []task.Task
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&two))
	assert.Len(t, two, 2)

	rr = a.do(t, "GET", "/api/v1/tasks/daily?count=-1", &alice, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestPlayerEndpoints(t *testing.T) {
	a := newTestAPI(t)
	tk := a.addTask(t, task.TypeOnchain, 4)
	a.join(t, alice)
	rr := a.do(t, "POST", fmt.Sprintf("/api/v1/tasks/%d/complete", tk.ID), &alice, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = a.do(t, "GET", "/api/v1/players/"+alice.Hex(), nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var rec player.Record
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&rec))
	assert.Equal(t, alice, rec.Address)
	assert.Equal(t, uint64(4), rec.WeeklyBasePoints)
	assert.Equal(t, uint64(1), rec.CurrentStreak)

	rr = a.do(t, "GET", "/api/v1/players/"+bob.Hex(), nil, nil)
	require.Equal(t, http.StatusOK, rr.Code, "unknown players read as the zero record")

	rr = a.do(t, "GET", "/api/v1/players/not-an-address", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = a.do(t, "GET", "/api/v1/players/"+alice.Hex()+"/status", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = a.do(t, "GET", "/api/v1/players/"+alice.Hex()+"/day-reset", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var reset map[string]int64
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&reset))
	assert.Equal(t, int64((24*time.Hour)/time.Second), reset["time_until_day_reset"])
}

func TestGetLeaderboard(t *testing.T) {
	a := newTestAPI(t)
	tk := a.addTask(t, task.TypeOnchain, 10)
	for _, who := range []common.Address{alice, bob} {
		a.join(t, who)
	}
	for i := 0; i < 2; i++ {
		rr := a.do(t, "POST", fmt.Sprintf("/api/v1/tasks/%d/complete", tk.ID), &bob, nil)
		require.Equal(t, http.StatusOK, rr.Code)
	}
	rr := a.do(t, "POST", fmt.Sprintf("/api/v1/tasks/%d/complete", tk.ID), &alice, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = a.do(t, "GET", "/api/v1/leaderboard", &alice, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var board leaderboard.Leaderboard
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&board))
	require.Len(t, board.Entries, 2)
	assert.Equal(t, bob, board.Entries[0].Address)
	require.NotNil(t, board.UserPosition)
	assert.Equal(t, 2, board.UserPosition.Rank)

	rr = a.do(t, "GET", "/api/v1/leaderboard?format=arrays", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var arrays leaderboard.Arrays
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&arrays))
	assert.Equal(t, []common.Address{bob, alice}, arrays.Addresses)
	assert.Equal(t, []uint64{20, 10}, arrays.Points)
}

func TestGetEventsAndSnapshot(t *testing.T) {
	a := newTestAPI(t)
	a.join(t, alice)

	rr := a.do(t, "GET", "/api/v1/events?since=0&limit=10", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var list []map[string]interface{}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&list))
	require.Len(t, list, 1)
	assert.Equal(t, "PlayerJoined", list[0]["type"])

	rr = a.do(t, "GET", "/api/v1/weeks/0/snapshot", nil, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = a.do(t, "GET", "/api/v1/weeks/x/snapshot", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
