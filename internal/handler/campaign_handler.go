// internal/handler/campaign_handler.go
package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	appErrors "github.com/unclebandit/outreach-backend/internal/errors"
	"github.com/unclebandit/outreach-backend/internal/model"
	"github.com/unclebandit/outreach-backend/internal/repository"

	"github.com/go-chi/chi/v5"
)

// CampaignHandler serves the read side: campaign details with delivery stats
// and the paginated list.
type CampaignHandler struct {
	Campaigns  repository.CampaignRepositoryInterface
	Deliveries repository.DeliveryRepositoryInterface
}

type campaignDetails struct {
	*model.Campaign
	Stats map[string]int `json:"stats"`
}

func (h *CampaignHandler) GetCampaignWithStats(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid campaign id", http.StatusBadRequest)
		return
	}
	owner, _ := strconv.Atoi(r.Header.Get("X-Owner-ID"))

	campaign, err := h.Campaigns.GetByID(owner, id)
	if err != nil {
		var notFound *appErrors.ErrCampaignNotFound
		if appErrors.As(err, &notFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, "failed to fetch campaign: "+err.Error(), http.StatusInternalServerError)
		return
	}

	stats, err := h.Deliveries.StatsByCampaign(id)
	if err != nil {
		http.Error(w, "failed to fetch stats: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(campaignDetails{Campaign: campaign, Stats: stats})
}

// ListCampaigns returns a paginated list for the owner.
func (h *CampaignHandler) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	owner, _ := strconv.Atoi(r.Header.Get("X-Owner-ID"))

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	status := r.URL.Query().Get("status")

	campaigns, total, err := h.Campaigns.ListCampaigns(owner, (page-1)*pageSize, pageSize, status)
	if err != nil {
		http.Error(w, "failed to fetch campaigns: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"data": campaigns,
		"pagination": map[string]int{
			"page":        page,
			"page_size":   pageSize,
			"total_count": total,
			"total_pages": (total + pageSize - 1) / pageSize,
		},
	})
}
