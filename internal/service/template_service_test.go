package service_test

import (
	"testing"

	"github.com/unclebandit/outreach-backend/internal/model"
	"github.com/unclebandit/outreach-backend/internal/service"

	"github.com/stretchr/testify/assert"
)

func TestRenderTemplate(t *testing.T) {
	data := map[string]string{"first_name": "Bob", "company": ""}

	assert.Equal(t, "Hi Bob", service.RenderTemplate("Hi {first_name}", data))
	assert.Equal(t, "Bob at <unknown>", service.RenderTemplate("{first_name} at {company}", data))
	assert.Equal(t, "no tokens", service.RenderTemplate("no tokens", data))
	// Unknown placeholders pass through untouched.
	assert.Equal(t, "{nickname}", service.RenderTemplate("{nickname}", data))
}

func TestContactContext(t *testing.T) {
	ctx := service.ContactContext(&model.Contact{
		Email: "bob@example.com", FirstName: "Bob", LastName: "Jones", Company: "Acme",
	})
	assert.Equal(t, "Bob", ctx["first_name"])
	assert.Equal(t, "Acme", ctx["company"])
}

func TestAppendUnsubscribeTrimsTrailingSlash(t *testing.T) {
	body := service.AppendUnsubscribe("<p>hi</p>", "https://app.test/", "tok-9")
	assert.Contains(t, body, `href="https://app.test/unsubscribe/tok-9"`)
}

func TestAppendOpenPixel(t *testing.T) {
	body := service.AppendOpenPixel("<p>hi</p>", "https://app.test", 3, 7)
	assert.Contains(t, body, `src="https://app.test/track/open/3/7.png"`)
}
