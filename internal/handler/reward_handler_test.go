package handler_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/green-campus-api/internal/dto"
	"github.com/noah-isme/green-campus-api/internal/handler"
	"github.com/noah-isme/green-campus-api/internal/service"
)

type mockRewardService struct {
	listReq   dto.RewardListRequest
	updateID  uint
	updateReq dto.RewardUpdateRequest
	updateErr error
}

func (m *mockRewardService) Create(_ context.Context, req dto.RewardCreateRequest, _ service.Actor) (dto.RewardResponse, error) {
	return dto.RewardResponse{ID: 1, Name: req.Name, CostCredits: req.CostCredits}, nil
}

func (m *mockRewardService) Update(_ context.Context, id uint, req dto.RewardUpdateRequest, _ service.Actor) (dto.RewardResponse, error) {
	m.updateID = id
	m.updateReq = req
	if m.updateErr != nil {
		return dto.RewardResponse{}, m.updateErr
	}
	response := dto.RewardResponse{ID: id, Name: "Bottle", CostCredits: 10, IsActive: true}
	if req.CostCredits != nil {
		response.CostCredits = *req.CostCredits
	}
	if req.IsActive != nil {
		response.IsActive = *req.IsActive
	}
	return response, nil
}

func (m *mockRewardService) List(_ context.Context, req dto.RewardListRequest) (dto.RewardListResponse, error) {
	m.listReq = req
	return dto.RewardListResponse{Items: []dto.RewardResponse{{ID: 1, Name: "Bottle", Available: true}}}, nil
}

func TestRewardRedeemErrorCodes(t *testing.T) {
	cases := map[error]struct {
		status int
		code   string
	}{
		service.ErrInsufficientCredits:  {http.StatusConflict, "insufficient_credits"},
		service.ErrRedemptionCapReached: {http.StatusConflict, "redemption_cap_reached"},
		service.ErrRewardUnavailable:    {http.StatusConflict, "reward_unavailable"},
		service.ErrRewardNotFound:       {http.StatusNotFound, "not_found"},
	}

	for err, want := range cases {
		redemptions := &mockRedemptionService{redeemErr: err}
		app := newTestApp()
		handler.NewRewardHandler(&mockRewardService{}, redemptions, testLogger()).Register(app.Group("/api/v1"))

		resp, body := perform(t, app, http.MethodPost, "/api/v1/rewards/2/redeem", "student", nil)
		require.Equal(t, want.status, resp.StatusCode, want.code)
		require.Equal(t, want.code, body.Code)
		require.Equal(t, uint(2), redemptions.rewardID)
	}
}

func TestRewardRedeemCreated(t *testing.T) {
	app := newTestApp()
	handler.NewRewardHandler(&mockRewardService{}, &mockRedemptionService{}, testLogger()).Register(app.Group("/api/v1"))

	resp, body := perform(t, app, http.MethodPost, "/api/v1/rewards/2/redeem", "student", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var redeemed dto.RedeemResponse
	decodeData(t, body, &redeemed)
	require.Equal(t, uint(7), redeemed.Redemption.StudentID)

	resp, _ = perform(t, app, http.MethodPost, "/api/v1/rewards/2/redeem", "admin", nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestRewardListIsPublic(t *testing.T) {
	rewards := &mockRewardService{}
	app := newTestApp()
	handler.NewRewardHandler(rewards, &mockRedemptionService{}, testLogger()).Register(app.Group("/api/v1"))

	resp, body := perform(t, app, http.MethodGet, "/api/v1/rewards?category=Food", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "Food", rewards.listReq.Category)
	require.Equal(t, 1, rewards.listReq.Page)
	require.Equal(t, 20, rewards.listReq.PageSize)

	var list dto.RewardListResponse
	decodeData(t, body, &list)
	require.Len(t, list.Items, 1)
}
