package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"LendLedger/internal/core"
	fpmath "LendLedger/internal/math"
	"LendLedger/internal/state"
)

type depositRequest struct {
	Amount int64 `json:"amount"`
}

type borrowRequest struct {
	CollateralAmount int64 `json:"collateral_amount"`
	DurationDays     int64 `json:"duration_days"`
}

type repayRequest struct {
	Amount int64 `json:"amount"`
}

type liquidateRequest struct {
	Borrower uuid.UUID `json:"borrower"`
}

type createPoolRequest struct {
	Orientation      string `json:"orientation"`
	InterestRate     uint8  `json:"interest_rate"`
	ReserveFeeRate   uint8  `json:"reserve_fee_rate"`
	CollateralFactor uint8  `json:"collateral_factor"`
}

type updateParamsRequest struct {
	InterestRate     uint8 `json:"interest_rate"`
	ReserveFeeRate   uint8 `json:"reserve_fee_rate"`
	CollateralFactor uint8 `json:"collateral_factor"`
}

type poolResponse struct {
	ID                   uint32 `json:"id"`
	Orientation          string `json:"orientation"`
	DepositAsset         string `json:"deposit_asset"`
	CollateralAsset      string `json:"collateral_asset"`
	InterestRate         uint8  `json:"interest_rate"`
	ReserveFeeRate       uint8  `json:"reserve_fee_rate"`
	CollateralFactor     uint8  `json:"collateral_factor"`
	TotalBorrowAmount    int64  `json:"total_borrow_amount"`
	TotalAssetAmount     int64  `json:"total_asset_amount"`
	TotalReserveAmount   int64  `json:"total_reserve_amount"`
	CurrentBalanceAmount int64  `json:"current_balance_amount"`
}

func poolToResponse(p *state.Pool) poolResponse {
	return poolResponse{
		ID:                   p.ID,
		Orientation:          p.Orientation.String(),
		DepositAsset:         p.DepositKind().String(),
		CollateralAsset:      p.CollateralKind().String(),
		InterestRate:         p.Params.InterestRate,
		ReserveFeeRate:       p.Params.ReserveFeeRate,
		CollateralFactor:     p.Params.CollateralFactor,
		TotalBorrowAmount:    p.TotalBorrowAmount,
		TotalAssetAmount:     p.TotalAssetAmount,
		TotalReserveAmount:   p.TotalReserveAmount,
		CurrentBalanceAmount: p.CurrentBalanceAmount,
	}
}

func (s *Server) handleCreatePool(w http.ResponseWriter, r *http.Request) {
	var req createPoolRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	orientation, ok := parseOrientation(req.Orientation)
	if !ok {
		writeError(w, http.StatusBadRequest, "orientation must be a_as_collateral or b_as_collateral")
		return
	}

	pool, err := s.core.CreatePool(principalFrom(r), orientation, state.PoolParams{
		InterestRate:     req.InterestRate,
		ReserveFeeRate:   req.ReserveFeeRate,
		CollateralFactor: req.CollateralFactor,
	})
	if err != nil {
		s.writeOperationError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, poolToResponse(pool))
}

func (s *Server) handleUpdateParams(w http.ResponseWriter, r *http.Request) {
	poolID, ok := poolIDFrom(w, r)
	if !ok {
		return
	}
	var req updateParamsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	err := s.core.UpdatePoolParams(principalFrom(r), poolID, state.PoolParams{
		InterestRate:     req.InterestRate,
		ReserveFeeRate:   req.ReserveFeeRate,
		CollateralFactor: req.CollateralFactor,
	})
	if err != nil {
		s.writeOperationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (s *Server) handleListPools(w http.ResponseWriter, r *http.Request) {
	pools := s.core.ListPools()
	out := make([]poolResponse, 0, len(pools))
	for _, p := range pools {
		out = append(out, poolToResponse(p))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetPool(w http.ResponseWriter, r *http.Request) {
	poolID, ok := poolIDFrom(w, r)
	if !ok {
		return
	}
	pool, err := s.core.GetPool(poolID)
	if err != nil {
		s.writeOperationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, poolToResponse(pool))
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	poolID, ok := poolIDFrom(w, r)
	if !ok {
		return
	}
	var req depositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	shares, err := s.core.Deposit(principalFrom(r), poolID, req.Amount)
	if err != nil {
		s.writeOperationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"shares_minted": shares})
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	poolID, ok := poolIDFrom(w, r)
	if !ok {
		return
	}
	amount, err := s.core.Withdraw(principalFrom(r), poolID)
	if err != nil {
		s.writeOperationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"amount": amount})
}

func (s *Server) handleBorrow(w http.ResponseWriter, r *http.Request) {
	poolID, ok := poolIDFrom(w, r)
	if !ok {
		return
	}
	var req borrowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	borrowed, owed, err := s.core.Borrow(principalFrom(r), poolID, req.CollateralAmount, req.DurationDays)
	if err != nil {
		s.writeOperationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{
		"borrowed_amount": borrowed,
		"repay_amount":    owed,
	})
}

func (s *Server) handleRepay(w http.ResponseWriter, r *http.Request) {
	poolID, ok := poolIDFrom(w, r)
	if !ok {
		return
	}
	var req repayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	paid, remaining, err := s.core.Repay(principalFrom(r), poolID, req.Amount)
	if err != nil {
		s.writeOperationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{
		"paid_amount":    paid,
		"remaining_debt": remaining,
	})
}

func (s *Server) handleLiquidate(w http.ResponseWriter, r *http.Request) {
	poolID, ok := poolIDFrom(w, r)
	if !ok {
		return
	}
	var req liquidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	seized, err := s.core.Liquidate(principalFrom(r), poolID, req.Borrower)
	if err != nil {
		s.writeOperationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"collateral_seized": seized})
}

type loanResponse struct {
	PoolID           uint32    `json:"pool_id"`
	Principal        uuid.UUID `json:"principal"`
	CollateralAmount int64     `json:"collateral_amount"`
	BorrowedAmount   int64     `json:"borrowed_amount"`
	InterestAmount   int64     `json:"interest_amount"`
	FeeAmount        int64     `json:"fee_amount"`
	RepayAmount      int64     `json:"repay_amount"`
	StartTime        int64     `json:"start_time"`
	DurationDays     int64     `json:"duration_days"`
	MaturityTime     int64     `json:"maturity_time"`
}

func (s *Server) handleGetLoan(w http.ResponseWriter, r *http.Request) {
	poolID, ok := poolIDFrom(w, r)
	if !ok {
		return
	}
	borrower, err := uuid.Parse(chi.URLParam(r, "principal"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "principal must be a UUID")
		return
	}

	loan, err := s.core.GetLoan(poolID, borrower)
	if err != nil {
		s.writeOperationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loanResponse{
		PoolID:           loan.PoolID,
		Principal:        loan.Principal,
		CollateralAmount: loan.CollateralAmount,
		BorrowedAmount:   loan.BorrowedAmount,
		InterestAmount:   loan.InterestAmount,
		FeeAmount:        loan.FeeAmount,
		RepayAmount:      loan.RepayAmount,
		StartTime:        loan.StartTime,
		DurationDays:     loan.DurationDays,
		MaturityTime:     loan.MaturityTime(),
	})
}

func (s *Server) handleGetDepositor(w http.ResponseWriter, r *http.Request) {
	poolID, ok := poolIDFrom(w, r)
	if !ok {
		return
	}
	principal, err := uuid.Parse(chi.URLParam(r, "principal"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "principal must be a UUID")
		return
	}

	shares, err := s.core.ShareBalance(poolID, principal)
	if err != nil {
		s.writeOperationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"share_balance": shares})
}

func (s *Server) handlePayoffQuote(w http.ResponseWriter, r *http.Request) {
	poolID, ok := poolIDFrom(w, r)
	if !ok {
		return
	}
	borrower, err := uuid.Parse(chi.URLParam(r, "borrower"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "borrower must be a UUID")
		return
	}

	quote, err := s.core.GetPayoffQuote(poolID, borrower)
	if err != nil {
		s.writeOperationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"payoff_amount": quote})
}

func (s *Server) handlePrincipalHistory(w http.ResponseWriter, r *http.Request) {
	if s.queries == nil {
		writeError(w, http.StatusNotImplemented, "history not available")
		return
	}
	limit, offset := pageParams(r)
	page, err := s.queries.PrincipalHistory(r.Context(), principalFrom(r), limit, offset)
	if err != nil {
		s.log.Error().Err(err).Msg("principal history query failed")
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handlePoolHistory(w http.ResponseWriter, r *http.Request) {
	if s.queries == nil {
		writeError(w, http.StatusNotImplemented, "history not available")
		return
	}
	poolID, ok := poolIDFrom(w, r)
	if !ok {
		return
	}
	limit, offset := pageParams(r)
	page, err := s.queries.PoolHistory(r.Context(), poolID, limit, offset)
	if err != nil {
		s.log.Error().Err(err).Msg("pool history query failed")
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// writeOperationError maps core sentinels onto HTTP statuses.
func (s *Server) writeOperationError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrOperationInProgress):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, state.ErrNoSuchPool),
		errors.Is(err, core.ErrNoActiveLoan):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, core.ErrNotOwner):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, core.ErrAlreadyBorrowed),
		errors.Is(err, core.ErrSelfLiquidation),
		errors.Is(err, core.ErrNotYetLiquidatable),
		errors.Is(err, core.ErrNoCollateral):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, core.ErrZeroAmount),
		errors.Is(err, core.ErrZeroCollateral),
		errors.Is(err, core.ErrZeroRepay),
		errors.Is(err, core.ErrExcessiveDuration):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, core.ErrInsufficientBalance),
		errors.Is(err, core.ErrInsufficientCollateral),
		errors.Is(err, core.ErrInsufficientLiquidity),
		errors.Is(err, core.ErrUnavailable):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		// Stale oracle rates and custody failures are transient.
		s.log.Error().Err(err).Msg("operation failed")
		writeError(w, http.StatusServiceUnavailable, err.Error())
	}
}

func parseOrientation(s string) (fpmath.Orientation, bool) {
	switch s {
	case "a_as_collateral":
		return fpmath.AssetAAsCollateral, true
	case "b_as_collateral":
		return fpmath.AssetBAsCollateral, true
	default:
		return 0, false
	}
}

func poolIDFrom(w http.ResponseWriter, r *http.Request) (uint32, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "poolID"), 10, 32)
	if err != nil {
		writeError(w, http.StatusBadRequest, "pool id must be a positive integer")
		return 0, false
	}
	return uint32(id), true
}

func pageParams(r *http.Request) (limit, offset int) {
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
