//go:build acceptance

package acceptance

import (
	"fmt"
	"testing"

	"github.com/playwright-community/playwright-go"
	"github.com/stretchr/testify/require"
)

// LoginPage drives the sign-in form. Selectors use the ids the templates
// declare stable.
type LoginPage struct {
	Page playwright.Page
	t    *testing.T
}

func OpenLoginPage(t *testing.T, ctx playwright.BrowserContext, baseURL string) *LoginPage {
	t.Helper()

	page, err := ctx.NewPage()
	require.NoError(t, err)
	_, err = page.Goto(baseURL + "/login")
	require.NoError(t, err)

	return &LoginPage{Page: page, t: t}
}

func (lp *LoginPage) SignIn(email, password string) {
	lp.t.Helper()
	require.NoError(lp.t, lp.Page.Locator("#email").Fill(email))
	require.NoError(lp.t, lp.Page.Locator("#password").Fill(password))
	require.NoError(lp.t, lp.Page.Locator("#login-submit").Click())
}

// ExpectCustomersPage waits for the post-login redirect.
func (lp *LoginPage) ExpectCustomersPage() *CustomersPage {
	lp.t.Helper()
	err := lp.Page.WaitForURL("**/customers", playwright.PageWaitForURLOptions{
		Timeout: playwright.Float(10000),
	})
	require.NoError(lp.t, err, "login did not land on the customers page")
	return &CustomersPage{Page: lp.Page, t: lp.t}
}

// ExpectRejection waits for the bounce back to the form with the error line.
func (lp *LoginPage) ExpectRejection() {
	lp.t.Helper()
	err := lp.Page.WaitForURL("**/login?error=1", playwright.PageWaitForURLOptions{
		Timeout: playwright.Float(10000),
	})
	require.NoError(lp.t, err, "rejected login did not return to the form")

	err = lp.Page.Locator("#login-error").WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(5000),
	})
	require.NoError(lp.t, err, "login error message did not appear")
}

// CustomersPage is the table behind the login.
type CustomersPage struct {
	Page playwright.Page
	t    *testing.T
}

// OpenCustomersPage navigates straight to /customers; without a session the
// application bounces the browser to the login form instead.
func OpenCustomersPage(t *testing.T, ctx playwright.BrowserContext, baseURL string) playwright.Page {
	t.Helper()

	page, err := ctx.NewPage()
	require.NoError(t, err)
	_, err = page.Goto(baseURL + "/customers")
	require.NoError(t, err)

	return page
}

func (cp *CustomersPage) SignedInAs() string {
	cp.t.Helper()
	text, err := cp.Page.Locator("#signed-in-as").TextContent()
	require.NoError(cp.t, err)
	return text
}

// ExpectCustomer waits for a row carrying the given name.
func (cp *CustomersPage) ExpectCustomer(name string) {
	cp.t.Helper()
	row := cp.Page.Locator(fmt.Sprintf(`#customers-table tbody tr:has-text(%q)`, name))
	err := row.WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateAttached,
		Timeout: playwright.Float(5000),
	})
	require.NoError(cp.t, err, "customer %q never appeared in the table", name)
}

func (cp *CustomersPage) RowCount() int {
	cp.t.Helper()
	n, err := cp.Page.Locator("#customers-table tbody tr").Count()
	require.NoError(cp.t, err)
	return n
}
