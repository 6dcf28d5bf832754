package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/crowdvault/crowdvault/internal/callerctx"
	campaigndomain "github.com/crowdvault/crowdvault/internal/campaign/domain"
	"github.com/crowdvault/crowdvault/pkg/db/pagination"
	"github.com/crowdvault/crowdvault/pkg/money"
	"github.com/gin-gonic/gin"
)

type createCampaignRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Image       string `json:"image"`
	Target      string `json:"target"`
	Deadline    string `json:"deadline"`
}

func (s *Server) CreateCampaign(c *gin.Context) {
	var req createCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	caller, _ := callerctx.CallerFromContext(c.Request.Context())

	target, err := money.Parse(req.Target)
	if err != nil {
		AbortWithError(c, campaigndomain.ErrInvalidTarget)
		return
	}

	deadline, err := time.Parse(time.RFC3339, strings.TrimSpace(req.Deadline))
	if err != nil {
		AbortWithError(c, campaigndomain.ErrInvalidDeadline)
		return
	}

	resp, err := s.campaignSvc.Create(c.Request.Context(), campaigndomain.CreateCampaignRequest{
		Owner:       caller,
		Title:       req.Title,
		Description: req.Description,
		Image:       req.Image,
		Target:      target,
		Deadline:    deadline,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListCampaigns(c *gin.Context) {
	var query struct {
		pagination.Pagination
		Owner string `form:"owner"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	resp, err := s.campaignSvc.List(c.Request.Context(), campaigndomain.ListCampaignRequest{
		PageToken: query.PageToken,
		PageSize:  int32(query.PageSize),
		Owner:     strings.TrimSpace(query.Owner),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetCampaignByID(c *gin.Context) {
	resp, err := s.campaignSvc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdateCampaignState(c *gin.Context) {
	resp, err := s.campaignSvc.UpdateState(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type donateRequest struct {
	Amount string `json:"amount"`
}

func (s *Server) Donate(c *gin.Context) {
	var req donateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	caller, _ := callerctx.CallerFromContext(c.Request.Context())

	amount, err := money.Parse(req.Amount)
	if err != nil {
		AbortWithError(c, campaigndomain.ErrInvalidAmount)
		return
	}

	resp, err := s.campaignSvc.Donate(c.Request.Context(), campaigndomain.DonateRequest{
		CampaignID: c.Param("id"),
		Donor:      caller,
		Amount:     amount,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListDonations(c *gin.Context) {
	resp, err := s.campaignSvc.ListDonations(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"donations": resp}})
}

func (s *Server) GetDonationByDonor(c *gin.Context) {
	amount, err := s.campaignSvc.DonationByDonor(c.Request.Context(), c.Param("id"), c.Param("donor"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"amount": amount}})
}

func (s *Server) ClaimFunds(c *gin.Context) {
	caller, _ := callerctx.CallerFromContext(c.Request.Context())

	resp, err := s.campaignSvc.ClaimFunds(c.Request.Context(), campaigndomain.ClaimFundsRequest{
		CampaignID: c.Param("id"),
		Caller:     caller,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ClaimRefund(c *gin.Context) {
	caller, _ := callerctx.CallerFromContext(c.Request.Context())

	resp, err := s.campaignSvc.ClaimRefund(c.Request.Context(), campaigndomain.ClaimRefundRequest{
		CampaignID: c.Param("id"),
		Donor:      caller,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetRefundStatus(c *gin.Context) {
	claimed, err := s.campaignSvc.HasClaimedRefund(c.Request.Context(), c.Param("id"), c.Param("donor"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"claimed": claimed}})
}

func (s *Server) GetActiveCampaignCount(c *gin.Context) {
	count, err := s.campaignSvc.ActiveCampaignCount(c.Request.Context(), c.Param("owner"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"count": count}})
}
