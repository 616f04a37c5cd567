package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	apperrors "github.com/smartbond/middleware/pkg/app/errors"
	apphttp "github.com/smartbond/middleware/pkg/app/http"
	"github.com/smartbond/middleware/pkg/cofhe"
	"github.com/smartbond/middleware/pkg/ledger"
	"github.com/smartbond/middleware/pkg/orchestrator"
	"github.com/smartbond/middleware/pkg/store"
)

const maxRequestBody = 1 << 20 // 1MB

// Workflows is the orchestrator surface the API drives.
type Workflows interface {
	IssueBond(ctx context.Context, params orchestrator.IssueParams) orchestrator.Outcome
	BuyBond(ctx context.Context, bond common.Address, paymentAmount *big.Int) orchestrator.Outcome
	Whitelist(ctx context.Context, bond, holder common.Address, status bool) orchestrator.Outcome
	CloseIssuance(ctx context.Context, bond common.Address) orchestrator.Outcome
	FundPayout(ctx context.Context, bond common.Address, amount *big.Int) orchestrator.Outcome
	MintPaymentToken(ctx context.Context, to common.Address, amount *big.Int) orchestrator.Outcome
	RedeemBond(ctx context.Context, bond common.Address, amount uint64) orchestrator.Outcome
	ClaimRedeem(ctx context.Context, bond common.Address) orchestrator.Outcome
	RefreshAll(ctx context.Context, holder common.Address) error
	Snapshot() []orchestrator.BondSummary
	Signer() common.Address
}

// RunLog reads the persisted workflow journal.
type RunLog interface {
	ListRuns(ctx context.Context, limit int) ([]*store.WorkflowRunDao, error)
	RunsForBond(ctx context.Context, bond string) ([]*store.WorkflowRunDao, error)
	RunsByStatus(ctx context.Context, status string) ([]*store.WorkflowRunDao, error)
}

// Handler exposes the bond workflows over HTTP.
type Handler struct {
	workflows Workflows
	runs      RunLog
	validate  *validator.Validate
	logger    *zap.Logger

	// paymentDecimals scales human payment amounts to the settlement token's
	// base units.
	paymentDecimals int32
}

// NewHandler creates an API handler. A nil runLog disables the journal
// endpoints.
func NewHandler(workflows Workflows, runLog RunLog, paymentDecimals int32, logger *zap.Logger) *Handler {
	return &Handler{
		workflows:       workflows,
		runs:            runLog,
		validate:        validator.New(validator.WithRequiredStructEnabled()),
		logger:          logger,
		paymentDecimals: paymentDecimals,
	}
}

// IssueBondRequest carries the plaintext bond terms. Confidential values
// never leave this process unencrypted.
type IssueBondRequest struct {
	ISIN              string `json:"isin" validate:"required,len=12,alphanum"`
	Cap               uint64 `json:"cap" validate:"required,gt=0"`
	PriceAtIssue      uint64 `json:"price_at_issue" validate:"required,gt=0"`
	CouponRatePerYear uint64 `json:"coupon_rate_per_year" validate:"required,gt=0"`
	Maturity          string `json:"maturity" validate:"required"`
	PaymentToken      string `json:"payment_token,omitempty" validate:"omitempty,eth_addr"`
}

// AmountRequest carries a human-readable settlement token amount,
// e.g. "1000.50".
type AmountRequest struct {
	Amount string `json:"amount" validate:"required"`
}

// FundPayoutRequest optionally overrides the on-chain payout requirement.
type FundPayoutRequest struct {
	Amount string `json:"amount,omitempty"`
}

// WhitelistRequest toggles holder eligibility on the bond's asset token.
type WhitelistRequest struct {
	Holder string `json:"holder" validate:"required,eth_addr"`
	Status *bool  `json:"status" validate:"required"`
}

// MintRequest mints settlement tokens on the test network.
type MintRequest struct {
	To     string `json:"to" validate:"required,eth_addr"`
	Amount string `json:"amount" validate:"required"`
}

// RedeemRequest carries the confidential token amount to redeem, in the
// bond's smallest denomination.
type RedeemRequest struct {
	Amount uint64 `json:"amount" validate:"required,gt=0"`
}

// RefreshRequest optionally names the holder whose balances the read model
// decrypts. Defaults to the orchestrator's signer.
type RefreshRequest struct {
	Holder string `json:"holder,omitempty" validate:"omitempty,eth_addr"`
}

// OutcomeResponse is the JSON projection of a workflow outcome.
type OutcomeResponse struct {
	Workflow string `json:"workflow"`
	Status   string `json:"status"`
	TxHash   string `json:"tx_hash,omitempty"`
	Block    uint64 `json:"block,omitempty"`
	Attempts int    `json:"attempts"`
	Detail   string `json:"detail,omitempty"`
}

func (h *Handler) issueBond(w http.ResponseWriter, r *http.Request) error {
	var req IssueBondRequest
	if err := h.decode(r, &req); err != nil {
		return err
	}

	maturity, err := time.Parse(time.RFC3339, req.Maturity)
	if err != nil {
		return apperrors.BadRequestError(err, "maturity must be RFC3339")
	}
	if !maturity.After(time.Now()) {
		return apperrors.BadRequestError(nil, "maturity must be in the future")
	}

	params := orchestrator.IssueParams{
		ISIN:              req.ISIN,
		Cap:               req.Cap,
		PriceAtIssue:      req.PriceAtIssue,
		CouponRatePerYear: req.CouponRatePerYear,
		Maturity:          maturity,
	}
	if req.PaymentToken != "" {
		params.PaymentToken = common.HexToAddress(req.PaymentToken)
	}

	return h.writeOutcome(w, h.workflows.IssueBond(r.Context(), params))
}

func (h *Handler) buyBond(w http.ResponseWriter, r *http.Request) error {
	bond, err := h.bondParam(r)
	if err != nil {
		return err
	}

	var req AmountRequest
	if err := h.decode(r, &req); err != nil {
		return err
	}
	amount, err := h.toBaseUnits(req.Amount)
	if err != nil {
		return err
	}

	return h.writeOutcome(w, h.workflows.BuyBond(r.Context(), bond, amount))
}

func (h *Handler) whitelistHolder(w http.ResponseWriter, r *http.Request) error {
	bond, err := h.bondParam(r)
	if err != nil {
		return err
	}

	var req WhitelistRequest
	if err := h.decode(r, &req); err != nil {
		return err
	}

	out := h.workflows.Whitelist(r.Context(), bond, common.HexToAddress(req.Holder), *req.Status)
	return h.writeOutcome(w, out)
}

func (h *Handler) closeIssuance(w http.ResponseWriter, r *http.Request) error {
	bond, err := h.bondParam(r)
	if err != nil {
		return err
	}
	return h.writeOutcome(w, h.workflows.CloseIssuance(r.Context(), bond))
}

func (h *Handler) fundPayout(w http.ResponseWriter, r *http.Request) error {
	bond, err := h.bondParam(r)
	if err != nil {
		return err
	}

	var req FundPayoutRequest
	if err := h.decode(r, &req); err != nil {
		return err
	}

	// a nil amount lets the orchestrator read totalPayoutRequired on-chain
	var amount *big.Int
	if req.Amount != "" {
		amount, err = h.toBaseUnits(req.Amount)
		if err != nil {
			return err
		}
	}

	return h.writeOutcome(w, h.workflows.FundPayout(r.Context(), bond, amount))
}

func (h *Handler) mintPaymentToken(w http.ResponseWriter, r *http.Request) error {
	var req MintRequest
	if err := h.decode(r, &req); err != nil {
		return err
	}
	amount, err := h.toBaseUnits(req.Amount)
	if err != nil {
		return err
	}

	out := h.workflows.MintPaymentToken(r.Context(), common.HexToAddress(req.To), amount)
	return h.writeOutcome(w, out)
}

func (h *Handler) redeemBond(w http.ResponseWriter, r *http.Request) error {
	bond, err := h.bondParam(r)
	if err != nil {
		return err
	}

	var req RedeemRequest
	if err := h.decode(r, &req); err != nil {
		return err
	}

	return h.writeOutcome(w, h.workflows.RedeemBond(r.Context(), bond, req.Amount))
}

func (h *Handler) claimRedeem(w http.ResponseWriter, r *http.Request) error {
	bond, err := h.bondParam(r)
	if err != nil {
		return err
	}
	return h.writeOutcome(w, h.workflows.ClaimRedeem(r.Context(), bond))
}

func (h *Handler) refreshBonds(w http.ResponseWriter, r *http.Request) error {
	var req RefreshRequest
	if err := h.decode(r, &req); err != nil {
		return err
	}

	holder := h.workflows.Signer()
	if req.Holder != "" {
		holder = common.HexToAddress(req.Holder)
	}

	if err := h.workflows.RefreshAll(r.Context(), holder); err != nil {
		return classifyError(err)
	}
	return apphttp.WriteJSON(w, http.StatusOK, h.workflows.Snapshot())
}

func (h *Handler) listBonds(w http.ResponseWriter, _ *http.Request) error {
	snapshot := h.workflows.Snapshot()
	if snapshot == nil {
		snapshot = []orchestrator.BondSummary{}
	}
	return apphttp.WriteJSON(w, http.StatusOK, snapshot)
}

const defaultRunsLimit = 50

func (h *Handler) listRuns(w http.ResponseWriter, r *http.Request) error {
	if h.runs == nil {
		return apperrors.ResourceNotFoundError(nil, "workflow journal not configured")
	}

	ctx := r.Context()
	var (
		runs []*store.WorkflowRunDao
		err  error
	)

	switch {
	case r.URL.Query().Get("bond") != "":
		bond := r.URL.Query().Get("bond")
		if !common.IsHexAddress(bond) {
			return apperrors.BadRequestError(nil, "bond must be a hex address")
		}
		runs, err = h.runs.RunsForBond(ctx, common.HexToAddress(bond).Hex())
	case r.URL.Query().Get("status") != "":
		runs, err = h.runs.RunsByStatus(ctx, r.URL.Query().Get("status"))
	default:
		limit := defaultRunsLimit
		if q := r.URL.Query().Get("limit"); q != "" {
			limit, err = strconv.Atoi(q)
			if err != nil || limit <= 0 {
				return apperrors.BadRequestError(err, "limit must be a positive integer")
			}
		}
		runs, err = h.runs.ListRuns(ctx, limit)
	}
	if err != nil {
		return apperrors.GeneralError(err)
	}

	if runs == nil {
		runs = []*store.WorkflowRunDao{}
	}
	return apphttp.WriteJSON(w, http.StatusOK, runs)
}

// decode reads, unmarshals and validates a JSON request body.
func (h *Handler) decode(r *http.Request, dst any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		return apperrors.BadRequestError(err, "failed to read request")
	}
	if len(body) == 0 {
		body = []byte("{}")
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return apperrors.BadRequestError(err, "invalid JSON")
	}
	if err := h.validate.Struct(dst); err != nil {
		return apperrors.BadRequestError(err, validationMessage(err))
	}
	return nil
}

func (h *Handler) bondParam(r *http.Request) (common.Address, error) {
	raw := chi.URLParam(r, "address")
	if !common.IsHexAddress(raw) {
		return common.Address{}, apperrors.BadRequestError(nil, "bond address is not a valid hex address")
	}
	return common.HexToAddress(raw), nil
}

// toBaseUnits converts a human decimal amount ("1000.50") to the settlement
// token's integer base units.
func (h *Handler) toBaseUnits(amount string) (*big.Int, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, apperrors.BadRequestError(err, "amount is not a valid decimal number")
	}
	if d.Sign() <= 0 {
		return nil, apperrors.BadRequestError(nil, "amount must be positive")
	}

	scaled := d.Shift(h.paymentDecimals)
	if !scaled.IsInteger() {
		return nil, apperrors.BadRequestError(nil,
			fmt.Sprintf("amount has more than %d decimal places", h.paymentDecimals))
	}
	return scaled.BigInt(), nil
}

// writeOutcome maps a workflow outcome to an HTTP response. Succeeded runs
// return 200, pending runs 202, failed runs the status of their error class.
func (h *Handler) writeOutcome(w http.ResponseWriter, out Outcome) error {
	resp := OutcomeResponse{
		Workflow: out.Workflow,
		Status:   string(out.Status),
		Attempts: out.Attempts,
	}
	if out.TxHash != (common.Hash{}) {
		resp.TxHash = out.TxHash.Hex()
	}
	if out.Receipt != nil {
		resp.Block = out.Receipt.BlockNumber
	}
	if out.Err != nil {
		resp.Detail = out.Err.Error()
	}

	switch out.Status {
	case orchestrator.StatusSucceeded:
		return apphttp.WriteJSON(w, http.StatusOK, resp)
	case orchestrator.StatusPending:
		return apphttp.WriteJSON(w, http.StatusAccepted, resp)
	default:
		return classifyError(out.Err)
	}
}

// Outcome aliases the orchestrator outcome for handler signatures.
type Outcome = orchestrator.Outcome

// classifyError maps workflow errors onto service error categories.
func classifyError(err error) error {
	if err == nil {
		return apperrors.GeneralError(nil)
	}

	switch {
	case errors.Is(err, orchestrator.ErrRunInFlight):
		return apperrors.LockedError(err, "a workflow for this bond and holder is already running")
	case errors.Is(err, ledger.ErrConfirmationTimeout):
		return apperrors.TimeoutError(err,
			"transaction confirmation timed out; outcome unknown, do not resubmit blindly")
	case errors.Is(err, cofhe.ErrEncryptionFailed):
		return apperrors.DependencyFailureError(err, "coprocessor encryption failed")
	case errors.Is(err, cofhe.ErrDecryptionUnavailable):
		return apperrors.DependencyFailureError(err, "coprocessor decryption unavailable")
	case errors.Is(err, ledger.ErrRPCUnavailable):
		return apperrors.DependencyFailureError(err, "ledger rpc unavailable")
	case errors.Is(err, ledger.ErrSubmissionRejected):
		return apperrors.BadRequestError(err, "transaction rejected by the node")
	}

	var transition *orchestrator.TransitionError
	if errors.As(err, &transition) {
		return apperrors.BadRequestError(err, transition.Error())
	}
	if rev, ok := ledger.AsRevert(err); ok {
		return apperrors.BadRequestError(err, rev.Error())
	}

	return apperrors.GeneralError(err)
}

// validationMessage flattens the first field error into a user-facing message.
func validationMessage(err error) string {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return fmt.Sprintf("field %s failed validation (%s)", fe.Field(), fe.Tag())
	}
	return "request validation failed"
}
