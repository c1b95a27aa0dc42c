// internal/service/template_service.go
package service

import (
	"fmt"
	"strings"

	"github.com/unclebandit/outreach-backend/internal/model"
)

// RenderTemplate substitutes {placeholder} tokens. Pure, side-effect-free.
func RenderTemplate(template string, data map[string]string) string {
	result := template
	for k, v := range data {
		if v == "" {
			v = "<unknown>"
		}
		result = strings.ReplaceAll(result, "{"+k+"}", v)
	}
	return result
}

// ContactContext builds the render data for one contact.
func ContactContext(c *model.Contact) map[string]string {
	return map[string]string{
		"email":      c.Email,
		"first_name": c.FirstName,
		"last_name":  c.LastName,
		"company":    c.Company,
	}
}

// AppendUnsubscribe adds the unsubscribe footer to a rendered HTML body.
func AppendUnsubscribe(body, baseURL, token string) string {
	return body + fmt.Sprintf(
		`<br><br><p style="font-size:12px;color:#888"><a href="%s/unsubscribe/%s">Unsubscribe</a></p>`,
		strings.TrimSuffix(baseURL, "/"), token)
}

// AppendOpenPixel adds the open-tracking marker.
func AppendOpenPixel(body, baseURL string, campaignID, contactID int) string {
	return body + fmt.Sprintf(
		`<img src="%s/track/open/%d/%d.png" width="1" height="1" alt="">`,
		strings.TrimSuffix(baseURL, "/"), campaignID, contactID)
}
