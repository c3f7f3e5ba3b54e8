package services

import (
	"context"
	"math/big"

	"go.uber.org/zap"

	"baseQuestAPI/internal/chain"
	"baseQuestAPI/internal/leaderboard"
	"baseQuestAPI/internal/logger"
	"baseQuestAPI/internal/week"
	"baseQuestAPI/utils"
)

// WinnersSharePercent of the pool is split between the winners. The rest
// stays in the treasury.
const WinnersSharePercent = 90

type TreasuryService struct {
	sender chain.PayoutSender
}

func NewTreasuryService(sender chain.PayoutSender) *TreasuryService {
	return &TreasuryService{sender: sender}
}

// PlanPayouts splits WinnersSharePercent of pool equally between the top
// ranked players. Integer division leftovers stay in the treasury.
func PlanPayouts(ranked []*leaderboard.LeaderboardEntry, pool *big.Int) []week.Payout {
	winners := utils.WinnerCount(len(ranked))
	if winners == 0 || pool == nil || pool.Sign() <= 0 {
		return nil
	}

	prize := new(big.Int).Mul(pool, big.NewInt(WinnersSharePercent))
	prize.Quo(prize, big.NewInt(100))
	share := new(big.Int).Quo(prize, big.NewInt(int64(winners)))
	if share.Sign() == 0 {
		return nil
	}

	out := make([]week.Payout, 0, winners)
	for _, e := range ranked[:winners] {
		out = append(out, week.Payout{
			Address: e.Address,
			Rank:    e.Rank,
			Amount:  new(big.Int).Set(share),
		})
	}
	return out
}

func (t *TreasuryService) Settle(ctx context.Context, wk uint64, ranked []*leaderboard.LeaderboardEntry, pool *big.Int) ([]week.Payout, error) {
	plan := PlanPayouts(ranked, pool)

	sent := make([]week.Payout, 0, len(plan))
	for _, p := range plan {
		hash, err := t.sender.Send(ctx, p.Address, p.Amount)
		if err != nil {
			return sent, err
		}
		p.TxHash = hash
		sent = append(sent, p)

		logger.WithContext(ctx).Info("payout sent",
			zap.Uint64("week", wk),
			zap.String("winner", p.Address.Hex()),
			zap.Int("rank", p.Rank),
			zap.String("amount_wei", p.Amount.String()),
			zap.String("tx_hash", hash),
		)
	}
	return sent, nil
}
