package legacy

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memberhub/models"
)

const loginPage = `<html><body>
<form method="post" action="/login">
  <input name="_token" value="csrf-123"/>
  <input name="username"/><input name="password" type="password"/>
</form></body></html>`

// Newer deployments render inputs, older ones a plain table. The profile
// page below mixes both so the fallback chain is exercised.
const profilePage = `<html><body>
<div class="profile-header"><h2>Asha Nair</h2></div>
<span data-member-id="u-42"></span>
<table>
  <tr><td class="dob">12-Mar-1980</td></tr>
  <tr><td class="membership-expiry">31-Dec-2025</td></tr>
</table>
<input name="phone" value="07700 900000"/>
<textarea name="address">12 Hill Road</textarea>
</body></html>`

const familyPage = `<html><body>
<form><input name="_token" value="csrf-456"/></form>
<table id="family-members"><tbody>
  <tr data-id="f-1"><td class="name">Anil</td><td class="relationship">spouse</td><td class="phone">07700 111</td><td class="email"></td></tr>
  <tr data-id="f-2"><td class="name">Meera</td><td class="relationship">daughter</td><td class="phone"></td><td class="email">meera@example.org</td></tr>
</tbody></table></body></html>`

const familyCardsPage = `<html><body>
<div class="family-member" data-id="f-9">
  <span class="name">Ravi</span><span class="relationship">son</span>
</div></body></html>`

func newTestBackend(t *testing.T) (*httptest.Server, *Session, *map[string]string) {
	t.Helper()
	posted := map[string]string{}
	loggedIn := false

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/login":
			w.Write([]byte(loginPage))
		case r.Method == http.MethodPost && r.URL.Path == "/login":
			r.ParseForm()
			posted["_token"] = r.PostForm.Get("_token")
			if r.PostForm.Get("password") == "secret" {
				loggedIn = true
				http.SetCookie(w, &http.Cookie{Name: "session", Value: "s-1"})
				w.Write([]byte("<html><body>Welcome</body></html>"))
			} else {
				w.Write([]byte(loginPage))
			}
		case r.URL.Path == "/member/profile":
			if !loggedIn {
				w.Write([]byte(loginPage))
				return
			}
			w.Write([]byte(profilePage))
		case r.URL.Path == "/member/family":
			w.Write([]byte(familyPage))
		case r.Method == http.MethodPost && r.URL.Path == "/member/family/save":
			r.ParseForm()
			posted["save_name"] = r.PostForm.Get("name")
			posted["save_token"] = r.PostForm.Get("_token")
			w.Write([]byte("<html><body>ok</body></html>"))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	s, err := NewSession(srv.URL, "asha", "secret")
	require.NoError(t, err)
	return srv, s, &posted
}

func TestLogin_PostsCSRFToken(t *testing.T) {
	_, s, posted := newTestBackend(t)

	require.NoError(t, s.Login(context.Background()))
	assert.Equal(t, "csrf-123", (*posted)["_token"])
}

func TestLogin_BadCredentials(t *testing.T) {
	srv, _, _ := newTestBackend(t)
	s, err := NewSession(srv.URL, "asha", "wrong")
	require.NoError(t, err)
	assert.Error(t, s.Login(context.Background()))
}

func TestFetchProfile_FallbackLocations(t *testing.T) {
	_, s, _ := newTestBackend(t)
	ctx := context.Background()

	// Not logged in yet: getPage re-authenticates transparently.
	profile, err := s.FetchProfile(ctx)
	require.NoError(t, err)

	assert.Equal(t, "Asha Nair", profile.Name, "falls back to header text")
	assert.Equal(t, "u-42", profile.ID, "read from data attribute")
	assert.Equal(t, "12-Mar-1980", profile.DateOfBirth)
	assert.Equal(t, "07700 900000", profile.Phone, "read from input value")
	assert.Equal(t, "12 Hill Road", profile.Address)
	assert.Equal(t, "31-Dec-2025", profile.MembershipExpiry)
	assert.Empty(t, profile.Email, "absent fields stay empty")
	now := time.Date(2025, 5, 20, 0, 0, 0, 0, time.UTC)
	assert.True(t, profile.IsMember(now), "scraped expiry drives membership")
}

func TestFetchFamily_TableAndCards(t *testing.T) {
	_, s, _ := newTestBackend(t)

	members, err := s.FetchFamily(context.Background())
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, "f-1", members[0].ID)
	assert.Equal(t, "spouse", members[0].Relationship)
	assert.Equal(t, "meera@example.org", members[1].Email)

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(familyCardsPage))
	require.NoError(t, err)
	assert.Equal(t, "Ravi", strings.TrimSpace(doc.Find(".family-member .name").Text()))
}

func TestSaveFamilyMember_CarriesToken(t *testing.T) {
	_, s, posted := newTestBackend(t)

	member := models.FamilyMember{ID: "f-1", Name: "Anil", Relationship: "spouse"}
	err := s.SaveFamilyMember(context.Background(), &member)
	require.NoError(t, err)
	assert.Equal(t, "Anil", (*posted)["save_name"])
	assert.Equal(t, "csrf-456", (*posted)["save_token"])
}
