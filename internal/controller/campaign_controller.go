// internal/controller/campaign_controller.go
package controller

import (
	"encoding/json"
	"net/http"
	"strconv"

	appErrors "github.com/unclebandit/outreach-backend/internal/errors"
	"github.com/unclebandit/outreach-backend/internal/model"
	"github.com/unclebandit/outreach-backend/internal/service"

	"github.com/go-chi/chi/v5"
)

// CampaignController exposes the lifecycle operations over HTTP. The auth
// layer is out of scope; the owner comes from the X-Owner-ID header set by
// the gateway.
type CampaignController struct {
	CampaignService *service.CampaignService
	Campaigns       interface {
		Create(c *model.Campaign) error
	}
}

func ownerID(r *http.Request) int {
	id, _ := strconv.Atoi(r.Header.Get("X-Owner-ID"))
	return id
}

func campaignID(r *http.Request) int {
	id, _ := strconv.Atoi(chi.URLParam(r, "id"))
	return id
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// writeLifecycleError maps the error taxonomy onto status codes: missing row
// is 404, zero-row conditional update is 409, everything else 500.
func writeLifecycleError(w http.ResponseWriter, err error) {
	var notFound *appErrors.ErrCampaignNotFound
	if appErrors.As(err, &notFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	var illegal *appErrors.ErrIllegalTransition
	if appErrors.As(err, &illegal) {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

func (c *CampaignController) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name             string `json:"name"`
		Subject          string `json:"subject"`
		Body             string `json:"body"`
		SendingAccountID *int   `json:"sending_account_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	campaign := &model.Campaign{
		OwnerID:          ownerID(r),
		Name:             body.Name,
		Subject:          body.Subject,
		Body:             body.Body,
		SendingAccountID: body.SendingAccountID,
		Status:           model.CampaignDraft,
	}
	if err := c.Campaigns.Create(campaign); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, campaign)
}

func (c *CampaignController) Validate(w http.ResponseWriter, r *http.Request) {
	reasons, err := c.CampaignService.Validate(r.Context(), ownerID(r), campaignID(r))
	if err != nil {
		writeLifecycleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"valid":   len(reasons) == 0,
		"reasons": reasons,
	})
}

func (c *CampaignController) Launch(w http.ResponseWriter, r *http.Request) {
	campaign, reasons, err := c.CampaignService.Launch(r.Context(), ownerID(r), campaignID(r))
	if err != nil {
		writeLifecycleError(w, err)
		return
	}
	if len(reasons) > 0 {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"valid":   false,
			"reasons": reasons,
		})
		return
	}
	writeJSON(w, http.StatusOK, campaign)
}

func (c *CampaignController) Pause(w http.ResponseWriter, r *http.Request) {
	c.transition(w, r, c.CampaignService.Pause)
}

func (c *CampaignController) Resume(w http.ResponseWriter, r *http.Request) {
	c.transition(w, r, c.CampaignService.Resume)
}

func (c *CampaignController) Cancel(w http.ResponseWriter, r *http.Request) {
	c.transition(w, r, c.CampaignService.Cancel)
}

func (c *CampaignController) Complete(w http.ResponseWriter, r *http.Request) {
	c.transition(w, r, c.CampaignService.Complete)
}

func (c *CampaignController) transition(w http.ResponseWriter, r *http.Request, op func(int, int) (*model.Campaign, error)) {
	campaign, err := op(ownerID(r), campaignID(r))
	if err != nil {
		writeLifecycleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, campaign)
}

func (c *CampaignController) Delete(w http.ResponseWriter, r *http.Request) {
	deleted, err := c.CampaignService.Delete(ownerID(r), campaignID(r))
	if err != nil {
		writeLifecycleError(w, err)
		return
	}
	if !deleted {
		writeJSON(w, http.StatusConflict, map[string]any{"deleted": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": true})
}
