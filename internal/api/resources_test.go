package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/google/uuid"
)

type recordedRequest struct {
	method string
	uri    string
	auth   string
	ctype  string
	body   string
}

func recordingClient(t *testing.T, status int, payload string) (*Client, *recordedRequest) {
	t.Helper()
	rec := &recordedRequest{}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		*rec = recordedRequest{
			method: r.Method,
			uri:    r.URL.RequestURI(),
			auth:   r.Header.Get("Authorization"),
			ctype:  r.Header.Get("Content-Type"),
			body:   string(b),
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(payload))
	})
	return c, rec
}

const userJSON = `{"id":"7c9e6679-7425-40de-944b-e07fc1f90ae7","email":"a@example.com","full_name":null,"is_active":true,"is_superuser":false,"created_at":"2024-05-01T10:00:00"}`

const itemJSON = `{"id":"2f1c7a52-61a4-4b7e-9d55-1c2b3a4d5e6f","title":"t","description":null,"owner_id":"7c9e6679-7425-40de-944b-e07fc1f90ae7","created_at":"2024-05-01T10:00:00Z"}`

func TestLogin(t *testing.T) {
	c, rec := recordingClient(t, http.StatusOK, `{"access_token":"abc","token_type":"bearer"}`)

	tok, err := c.Login(context.Background(), "a@example.com", "pw")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if tok.AccessToken != "abc" {
		t.Errorf("AccessToken = %q", tok.AccessToken)
	}
	if rec.method != http.MethodPost || rec.uri != "/api/v1/login/access-token" {
		t.Errorf("request = %s %s", rec.method, rec.uri)
	}
	if rec.ctype != "application/x-www-form-urlencoded" {
		t.Errorf("Content-Type = %q", rec.ctype)
	}
	if rec.body != "password=pw&username=a%40example.com" {
		t.Errorf("body = %q", rec.body)
	}
	if rec.auth != "" {
		t.Errorf("login must not send Authorization, got %q", rec.auth)
	}
}

func TestLoginFailure(t *testing.T) {
	c, _ := recordingClient(t, http.StatusBadRequest, `{"detail":"Incorrect email or password"}`)
	_, err := c.Login(context.Background(), "a@example.com", "bad")
	if got := ErrorMessage(err, ""); got != "Incorrect email or password" {
		t.Errorf("ErrorMessage() = %q", got)
	}
}

func TestCurrentUser(t *testing.T) {
	c, rec := recordingClient(t, http.StatusOK, userJSON)
	u, err := c.CurrentUser(context.Background(), "tok")
	if err != nil {
		t.Fatalf("CurrentUser() error = %v", err)
	}
	if rec.uri != "/api/v1/users/me" || rec.auth != "Bearer tok" {
		t.Errorf("request = %s auth=%q", rec.uri, rec.auth)
	}
	if u.Email != "a@example.com" || u.FullName != nil || !u.IsActive {
		t.Errorf("unexpected user %+v", u)
	}
	if u.CreatedAt.Year() != 2024 {
		t.Errorf("CreatedAt = %v", u.CreatedAt)
	}
	if u.DisplayName() != "a@example.com" {
		t.Errorf("DisplayName() = %q", u.DisplayName())
	}
}

func TestListItemsForwardsSkipLimit(t *testing.T) {
	c, rec := recordingClient(t, http.StatusOK, `{"data":[`+itemJSON+`],"count":12}`)
	page, err := c.ListItems(context.Background(), "tok", 10, 5)
	if err != nil {
		t.Fatalf("ListItems() error = %v", err)
	}
	if rec.method != http.MethodGet || rec.uri != "/api/v1/items/?limit=5&skip=10" {
		t.Errorf("request = %s %s", rec.method, rec.uri)
	}
	if page.Count != 12 || len(page.Data) != 1 || page.Data[0].Title != "t" {
		t.Errorf("unexpected page %+v", page)
	}
}

func TestItemMutations(t *testing.T) {
	id := uuid.MustParse("2f1c7a52-61a4-4b7e-9d55-1c2b3a4d5e6f")
	ctx := context.Background()

	t.Run("create sends null description", func(t *testing.T) {
		c, rec := recordingClient(t, http.StatusCreated, itemJSON)
		if _, err := c.CreateItem(ctx, "tok", ItemCreateInput{Title: "t"}); err != nil {
			t.Fatalf("CreateItem() error = %v", err)
		}
		if rec.method != http.MethodPost || rec.uri != "/api/v1/items/" {
			t.Errorf("request = %s %s", rec.method, rec.uri)
		}
		assertJSON(t, rec.body, map[string]any{"title": "t", "description": nil})
	})

	t.Run("update is partial", func(t *testing.T) {
		c, rec := recordingClient(t, http.StatusOK, itemJSON)
		if _, err := c.UpdateItem(ctx, "tok", id, ItemUpdateInput{Title: Some("new")}); err != nil {
			t.Fatalf("UpdateItem() error = %v", err)
		}
		if rec.method != http.MethodPatch || rec.uri != "/api/v1/items/"+id.String() {
			t.Errorf("request = %s %s", rec.method, rec.uri)
		}
		assertJSON(t, rec.body, map[string]any{"title": "new"})
	})

	t.Run("update can clear description", func(t *testing.T) {
		c, rec := recordingClient(t, http.StatusOK, itemJSON)
		if _, err := c.UpdateItem(ctx, "tok", id, ItemUpdateInput{Description: OptString("")}); err != nil {
			t.Fatalf("UpdateItem() error = %v", err)
		}
		assertJSON(t, rec.body, map[string]any{"description": nil})
	})

	t.Run("delete", func(t *testing.T) {
		c, rec := recordingClient(t, http.StatusOK, `{"message":"Item deleted successfully"}`)
		m, err := c.DeleteItem(ctx, "tok", id)
		if err != nil {
			t.Fatalf("DeleteItem() error = %v", err)
		}
		if rec.method != http.MethodDelete || m.Message != "Item deleted successfully" {
			t.Errorf("request = %s, message = %q", rec.method, m.Message)
		}
	})
}

func TestUserMutations(t *testing.T) {
	id := uuid.MustParse("7c9e6679-7425-40de-944b-e07fc1f90ae7")
	ctx := context.Background()

	t.Run("create applies defaults", func(t *testing.T) {
		c, rec := recordingClient(t, http.StatusCreated, userJSON)
		if _, err := c.CreateUser(ctx, "tok", UserCreateInput{Email: "a@example.com", Password: "longenough"}); err != nil {
			t.Fatalf("CreateUser() error = %v", err)
		}
		assertJSON(t, rec.body, map[string]any{
			"email":        "a@example.com",
			"full_name":    nil,
			"is_active":    true,
			"is_superuser": false,
			"password":     "longenough",
		})
	})

	t.Run("update omits password when unset", func(t *testing.T) {
		c, rec := recordingClient(t, http.StatusOK, userJSON)
		in := UserUpdateInput{Email: Some("b@example.com"), IsSuperuser: Some(true)}
		if _, err := c.UpdateUser(ctx, "tok", id, in); err != nil {
			t.Fatalf("UpdateUser() error = %v", err)
		}
		if rec.uri != "/api/v1/users/"+id.String() || rec.method != http.MethodPatch {
			t.Errorf("request = %s %s", rec.method, rec.uri)
		}
		assertJSON(t, rec.body, map[string]any{"email": "b@example.com", "is_superuser": true})
	})

	t.Run("list forbidden", func(t *testing.T) {
		c, _ := recordingClient(t, http.StatusForbidden, `{"detail":"The user doesn't have enough privileges"}`)
		if _, err := c.ListUsers(ctx, "tok", 0, 5); !IsForbidden(err) {
			t.Fatalf("expected forbidden, got %v", err)
		}
	})
}

func TestChangePassword(t *testing.T) {
	c, rec := recordingClient(t, http.StatusBadRequest, `{"detail":"Incorrect password"}`)
	_, err := c.ChangePassword(context.Background(), "tok", ChangePasswordInput{CurrentPassword: "old", NewPassword: "newpassword"})
	if ErrorMessage(err, "") != "Incorrect password" {
		t.Errorf("ErrorMessage() = %q", ErrorMessage(err, ""))
	}
	if rec.uri != "/api/v1/users/me/password" || rec.method != http.MethodPatch {
		t.Errorf("request = %s %s", rec.method, rec.uri)
	}
	assertJSON(t, rec.body, map[string]any{"current_password": "old", "new_password": "newpassword"})
}

func TestUpdateMeAndHealth(t *testing.T) {
	c, rec := recordingClient(t, http.StatusOK, userJSON)
	if _, err := c.UpdateMe(context.Background(), "tok", UpdateMeInput{FullName: OptString("Ada")}); err != nil {
		t.Fatalf("UpdateMe() error = %v", err)
	}
	assertJSON(t, rec.body, map[string]any{"full_name": "Ada"})

	ok, err := c.HealthCheck(context.Background())
	if err != nil || !ok {
		t.Errorf("HealthCheck() = %v, %v", ok, err)
	}
}

func assertJSON(t *testing.T, body string, want map[string]any) {
	t.Helper()
	var got map[string]any
	if err := json.Unmarshal([]byte(body), &got); err != nil {
		t.Fatalf("body %q is not json: %v", body, err)
	}
	gb, _ := json.Marshal(got)
	wb, _ := json.Marshal(want)
	if string(gb) != string(wb) {
		t.Errorf("body = %s, want %s", gb, wb)
	}
}
