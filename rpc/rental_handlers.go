package rpc

import (
	"math/big"
	"net/http"

	"leasehub/native/rental"
)

type rentalIDResult struct {
	ID uint64 `json:"id"`
}

type rentalIDsResult struct {
	IDs []uint64 `json:"ids"`
}

type holderResult struct {
	Holder string `json:"holder"`
}

type balanceResult struct {
	Balance string `json:"balance"`
}

type feePolicyResult struct {
	Collector string `json:"collector"`
	FeeBps    uint32 `json:"feeBps"`
}

type ackResult struct {
	OK bool `json:"ok"`
}

func (s *Server) handleRentalList(w http.ResponseWriter, req *RPCRequest) {
	var params rentalListParams
	if rpcErr := singleParam(req, &params); rpcErr != nil {
		writeRPCError(w, req.ID, rpcErr)
		return
	}
	caller, rpcErr := parseAddress(params.Caller)
	if rpcErr != nil {
		writeRPCError(w, req.ID, rpcErr)
		return
	}
	asset, rpcErr := parseAssetRef(params.Collection, params.TokenID)
	if rpcErr != nil {
		writeRPCError(w, req.ID, rpcErr)
		return
	}
	price, rpcErr := parseAmount(params.PricePerUnit)
	if rpcErr != nil {
		writeRPCError(w, req.ID, rpcErr)
		return
	}
	collateral, rpcErr := parseAmount(params.Collateral)
	if rpcErr != nil {
		writeRPCError(w, req.ID, rpcErr)
		return
	}
	record, err := s.node.List(caller, asset, rental.Terms{
		PricePerUnit: price,
		Collateral:   collateral,
		MinDuration:  params.MinDuration,
		MaxDuration:  params.MaxDuration,
	})
	if err != nil {
		writeDomainError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, rentalIDResult{ID: record.ID})
}

func (s *Server) handleRentalRent(w http.ResponseWriter, req *RPCRequest) {
	var params rentalRentParams
	if rpcErr := singleParam(req, &params); rpcErr != nil {
		writeRPCError(w, req.ID, rpcErr)
		return
	}
	caller, rpcErr := parseAddress(params.Caller)
	if rpcErr != nil {
		writeRPCError(w, req.ID, rpcErr)
		return
	}
	amount, rpcErr := parseAmount(params.Amount)
	if rpcErr != nil {
		writeRPCError(w, req.ID, rpcErr)
		return
	}
	record, err := s.node.Rent(params.ID, caller, params.Duration, amount)
	if err != nil {
		writeDomainError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, rentalToJSON(record))
}

func (s *Server) actorHandler(w http.ResponseWriter, req *RPCRequest, action func(uint64, [20]byte) (*rental.Rental, error)) {
	var params rentalActorParams
	if rpcErr := singleParam(req, &params); rpcErr != nil {
		writeRPCError(w, req.ID, rpcErr)
		return
	}
	caller, rpcErr := parseAddress(params.Caller)
	if rpcErr != nil {
		writeRPCError(w, req.ID, rpcErr)
		return
	}
	record, err := action(params.ID, caller)
	if err != nil {
		writeDomainError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, rentalToJSON(record))
}

func (s *Server) handleRentalComplete(w http.ResponseWriter, req *RPCRequest) {
	s.actorHandler(w, req, s.node.Complete)
}

func (s *Server) handleRentalCancel(w http.ResponseWriter, req *RPCRequest) {
	s.actorHandler(w, req, s.node.Cancel)
}

func (s *Server) handleRentalClaim(w http.ResponseWriter, req *RPCRequest) {
	s.actorHandler(w, req, s.node.Claim)
}

func (s *Server) handleRentalGet(w http.ResponseWriter, req *RPCRequest) {
	var params rentalIDParams
	if rpcErr := singleParam(req, &params); rpcErr != nil {
		writeRPCError(w, req.ID, rpcErr)
		return
	}
	record, err := s.node.Rental(params.ID)
	if err != nil {
		writeDomainError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, rentalToJSON(record))
}

func (s *Server) handleRentalsByAccount(w http.ResponseWriter, req *RPCRequest) {
	var params accountParams
	if rpcErr := singleParam(req, &params); rpcErr != nil {
		writeRPCError(w, req.ID, rpcErr)
		return
	}
	account, rpcErr := parseAddress(params.Account)
	if rpcErr != nil {
		writeRPCError(w, req.ID, rpcErr)
		return
	}
	ids, err := s.node.RentalsByAccount(account)
	if err != nil {
		writeDomainError(w, req.ID, err)
		return
	}
	if ids == nil {
		ids = []uint64{}
	}
	writeResult(w, req.ID, rentalIDsResult{IDs: ids})
}

func (s *Server) handleFeePolicy(w http.ResponseWriter, req *RPCRequest) {
	policy, err := s.node.FeePolicy()
	if err != nil {
		writeDomainError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, feePolicyResult{
		Collector: encodeAddress(policy.Collector),
		FeeBps:    policy.FeeBps,
	})
}

func (s *Server) handleSetFeeBps(w http.ResponseWriter, req *RPCRequest) {
	var params setFeeBpsParams
	if rpcErr := singleParam(req, &params); rpcErr != nil {
		writeRPCError(w, req.ID, rpcErr)
		return
	}
	caller, rpcErr := parseAddress(params.Caller)
	if rpcErr != nil {
		writeRPCError(w, req.ID, rpcErr)
		return
	}
	if err := s.node.SetFeeBps(caller, params.FeeBps); err != nil {
		writeDomainError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, ackResult{OK: true})
}

func (s *Server) handleSetFeeCollector(w http.ResponseWriter, req *RPCRequest) {
	var params setFeeCollectorParams
	if rpcErr := singleParam(req, &params); rpcErr != nil {
		writeRPCError(w, req.ID, rpcErr)
		return
	}
	caller, rpcErr := parseAddress(params.Caller)
	if rpcErr != nil {
		writeRPCError(w, req.ID, rpcErr)
		return
	}
	collector, rpcErr := parseAddress(params.Collector)
	if rpcErr != nil {
		writeRPCError(w, req.ID, rpcErr)
		return
	}
	if err := s.node.SetFeeCollector(caller, collector); err != nil {
		writeDomainError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, ackResult{OK: true})
}

func (s *Server) handleAssetHolder(w http.ResponseWriter, req *RPCRequest) {
	var params assetParams
	if rpcErr := singleParam(req, &params); rpcErr != nil {
		writeRPCError(w, req.ID, rpcErr)
		return
	}
	asset, rpcErr := parseAssetRef(params.Collection, params.TokenID)
	if rpcErr != nil {
		writeRPCError(w, req.ID, rpcErr)
		return
	}
	holder, err := s.node.AssetHolder(asset)
	if err != nil {
		writeDomainError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, holderResult{Holder: encodeAddress(holder)})
}

func (s *Server) handleAssetMint(w http.ResponseWriter, req *RPCRequest) {
	var params assetMintParams
	if rpcErr := singleParam(req, &params); rpcErr != nil {
		writeRPCError(w, req.ID, rpcErr)
		return
	}
	asset, rpcErr := parseAssetRef(params.Collection, params.TokenID)
	if rpcErr != nil {
		writeRPCError(w, req.ID, rpcErr)
		return
	}
	to, rpcErr := parseAddress(params.To)
	if rpcErr != nil {
		writeRPCError(w, req.ID, rpcErr)
		return
	}
	if err := s.node.MintAsset(asset, to); err != nil {
		writeDomainError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, ackResult{OK: true})
}

func (s *Server) handleBankBalance(w http.ResponseWriter, req *RPCRequest) {
	var params accountParams
	if rpcErr := singleParam(req, &params); rpcErr != nil {
		writeRPCError(w, req.ID, rpcErr)
		return
	}
	account, rpcErr := parseAddress(params.Account)
	if rpcErr != nil {
		writeRPCError(w, req.ID, rpcErr)
		return
	}
	balance, err := s.node.Balance(account)
	if err != nil {
		writeDomainError(w, req.ID, err)
		return
	}
	if balance == nil {
		balance = big.NewInt(0)
	}
	writeResult(w, req.ID, balanceResult{Balance: balance.String()})
}

func (s *Server) handleBankMint(w http.ResponseWriter, req *RPCRequest) {
	var params bankMintParams
	if rpcErr := singleParam(req, &params); rpcErr != nil {
		writeRPCError(w, req.ID, rpcErr)
		return
	}
	account, rpcErr := parseAddress(params.Account)
	if rpcErr != nil {
		writeRPCError(w, req.ID, rpcErr)
		return
	}
	amount, rpcErr := parseAmount(params.Amount)
	if rpcErr != nil {
		writeRPCError(w, req.ID, rpcErr)
		return
	}
	if err := s.node.MintFunds(account, amount); err != nil {
		writeDomainError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, ackResult{OK: true})
}
