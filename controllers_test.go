package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestRouter(t *testing.T) (*gin.Engine, *gorm.DB, *fakeProvider) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := setupTestDB(t)
	log := zap.NewNop()
	idp := &fakeProvider{}
	users := NewUserService(db, idp, log)
	groups := NewGroupService(db, log)
	tasks := NewTaskService(db, log)
	api := NewAPI(users, groups, tasks, idp, log)

	r := gin.New()
	SetupRoutes(r, api)
	return r, db, idp
}

// testToken builds a bearer token carrying the provider claims the
// middleware reads. The fake provider accepts any token as active.
func testToken(t *testing.T, sub string) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub":                sub,
		"preferred_username": sub,
		"email":              sub + "@example.com",
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return signed
}

func doRequest(t *testing.T, r *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestLoginEndpoint(t *testing.T) {
	r, _, idp := newTestRouter(t)

	rec := doRequest(t, r, http.MethodPost, "/api/login", "", gin.H{"username": "alice", "password": "pw"})
	assert.Equal(t, http.StatusOK, rec.Code)

	var tokens TokenPair
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tokens))
	assert.Equal(t, "access", tokens.AccessToken)

	idp.failLogin = true
	rec = doRequest(t, r, http.MethodPost, "/api/login", "", gin.H{"username": "alice", "password": "bad"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(t, r, http.MethodPost, "/api/login", "", gin.H{"username": "alice"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	r, _, _ := newTestRouter(t)

	rec := doRequest(t, r, http.MethodGet, "/api/tasks", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	req.Header.Set("Authorization", "NotBearer x")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthMiddlewareResolvesCaller(t *testing.T) {
	r, db, _ := newTestRouter(t)

	rec := doRequest(t, r, http.MethodGet, "/api/tasks", testToken(t, "kc-alice"), nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var user User
	require.NoError(t, db.First(&user, "id = ?", "kc-alice").Error)
	assert.Equal(t, "kc-alice", user.Username)
}

func TestCreateGroupEndpoint(t *testing.T) {
	r, db, _ := newTestRouter(t)
	token := testToken(t, "kc-alice")

	rec := doRequest(t, r, http.MethodPost, "/api/groups", token, gin.H{
		"name": "S1", "groupNumber": 1, "inviteLink": "x",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var payload struct {
		Group struct {
			ID          uint     `json:"id"`
			Members     []string `json:"members"`
			MemberCount int      `json:"memberCount"`
		} `json:"group"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, 1, payload.Group.MemberCount)
	assert.Equal(t, []string{"kc-alice"}, payload.Group.Members)

	var membership GroupMembership
	require.NoError(t, db.Where("user_id = ? AND group_id = ?", "kc-alice", payload.Group.ID).First(&membership).Error)
	assert.Equal(t, RoleAdmin, membership.Role)

	// Missing required fields map to 400.
	rec = doRequest(t, r, http.MethodPost, "/api/groups", token, gin.H{"name": "incomplete"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestErrorKindStatusMapping(t *testing.T) {
	r, db, _ := newTestRouter(t)
	aliceToken := testToken(t, "kc-alice")
	bobToken := testToken(t, "kc-bob")

	// NotFoundError -> 404
	rec := doRequest(t, r, http.MethodGet, "/api/users/ghost/groups", aliceToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Seed a group owned by alice, with bob as plain member.
	rec = doRequest(t, r, http.MethodPost, "/api/groups", aliceToken, gin.H{
		"name": "S1", "groupNumber": 1, "inviteLink": "x",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created struct {
		Group struct {
			ID uint `json:"id"`
		} `json:"group"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = doRequest(t, r, http.MethodPost, "/api/groups/join", bobToken, gin.H{"group_id": created.Group.ID})
	require.Equal(t, http.StatusOK, rec.Code)

	// PermissionError -> 403: a member cannot kick.
	rec = doRequest(t, r, http.MethodPost, "/api/groups/kick", bobToken,
		gin.H{"group_id": created.Group.ID, "user_id": "kc-alice"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// ValidationError -> 400: past deadline.
	rec = doRequest(t, r, http.MethodPost, "/api/tasks", aliceToken, gin.H{
		"title": "late", "deadline": futureDate(-1), "kind": "homework", "priority": "low",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var taskCount int64
	require.NoError(t, db.Model(&Task{}).Count(&taskCount).Error)
	assert.Zero(t, taskCount)
}

func TestRegisterEndpoint(t *testing.T) {
	r, _, idp := newTestRouter(t)

	rec := doRequest(t, r, http.MethodPost, "/api/users/register", "", gin.H{
		"firstName": "Alice", "lastName": "A", "username": "alice",
		"email": "alice@example.com", "password": "short",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, idp.createCalls)

	rec = doRequest(t, r, http.MethodPost, "/api/users/register", "", gin.H{
		"firstName": "Alice", "lastName": "A", "username": "alice",
		"email": "alice@example.com", "password": "longenough",
	})
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 1, idp.createCalls)
}

func TestUpdateTaskEndpoint(t *testing.T) {
	r, db, _ := newTestRouter(t)
	token := testToken(t, "kc-alice")

	rec := doRequest(t, r, http.MethodPost, "/api/tasks", token, gin.H{
		"title": "Homework", "deadline": futureDate(7), "kind": "homework", "priority": "high",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created struct {
		Task struct {
			ID uint `json:"id"`
		} `json:"task"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	// todo -> blocked is not in the transition table.
	rec = doRequest(t, r, http.MethodPut, "/api/tasks/"+itoa(created.Task.ID), token,
		gin.H{"status": "blocked"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, r, http.MethodPut, "/api/tasks/"+itoa(created.Task.ID), token,
		gin.H{"status": "in_progress"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, r, http.MethodPut, "/api/tasks/"+itoa(created.Task.ID), token,
		gin.H{"status": "blocked"})
	assert.Equal(t, http.StatusOK, rec.Code)

	var task Task
	require.NoError(t, db.First(&task, created.Task.ID).Error)
	assert.Equal(t, StatusBlocked, task.Status)
}
