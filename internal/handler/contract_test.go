package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/green-campus-api/internal/dto"
	"github.com/noah-isme/green-campus-api/internal/handler"
)

type stubWalletService struct {
	mockWalletService
	wallet dto.WalletResponse
}

func (s *stubWalletService) GetWallet(context.Context, uint) (dto.WalletResponse, error) {
	return s.wallet, nil
}

type stubRedemptionService struct {
	mockRedemptionService
	response dto.RedeemResponse
}

func (s *stubRedemptionService) Redeem(context.Context, uint, uint) (dto.RedeemResponse, error) {
	return s.response, nil
}

func compileSchema(t *testing.T, name string) *jsonschema.Schema {
	t.Helper()
	schemaPath, err := filepath.Abs(filepath.Join("testdata", name))
	require.NoError(t, err)

	compiler := jsonschema.NewCompiler()
	compiler.AssertFormat = true
	schema, err := compiler.Compile("file://" + schemaPath)
	require.NoError(t, err)
	return schema
}

func rawBody(t *testing.T, resp *http.Response) interface{} {
	t.Helper()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())

	var payload interface{}
	require.NoError(t, json.Unmarshal(data, &payload))
	return payload
}

func TestWalletContract(t *testing.T) {
	schema := compileSchema(t, "wallet.schema.json")

	svc := &stubWalletService{wallet: dto.WalletResponse{
		ID:            4,
		StudentID:     7,
		TotalCredits:  135.5,
		CreditsEarned: 160.5,
		CreditsSpent:  25,
		Level:         "Grove",
		UpdatedAt:     time.Now().UTC(),
	}}
	app := newTestApp()
	handler.NewWalletHandler(svc, testLogger()).Register(app.Group("/api/v1"))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/wallet", nil)
	req.Header.Set("X-Test-User", "7")
	req.Header.Set("X-Test-Role", "student")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, schema.Validate(rawBody(t, resp)))
}

func TestRedeemContract(t *testing.T) {
	schema := compileSchema(t, "redeem.schema.json")

	svc := &stubRedemptionService{response: dto.RedeemResponse{
		Redemption: dto.RedemptionResponse{
			ID:           1,
			StudentID:    7,
			RewardID:     2,
			CreditsSpent: 25,
			Status:       "pending",
			RedeemedAt:   time.Now().UTC(),
		},
		Wallet: dto.WalletResponse{ID: 4, StudentID: 7, TotalCredits: 45, Level: "Seed"},
	}}
	app := newTestApp()
	handler.NewRewardHandler(&mockRewardService{}, svc, testLogger()).Register(app.Group("/api/v1"))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/rewards/2/redeem", bytes.NewReader(nil))
	req.Header.Set("X-Test-User", "7")
	req.Header.Set("X-Test-Role", "student")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	require.NoError(t, schema.Validate(rawBody(t, resp)))
}
