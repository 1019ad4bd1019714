package hashupdate

import "github.com/nftindexer/indexer/internal/domain"

// kindStrategy captures the one thing that varies by order kind when
// recomputing fillability: most kinds derive fillability from the
// maker's current wallet balance, but escrowed kinds (Foundation,
// CryptoPunks) hold the listed token in the marketplace contract itself,
// so a balance check is meaningless and the order is always fillable on
// that axis. X2Y2 orders still need the balance/approval check, but on
// failure they cancel outright instead of going no-balance/no-approval;
// that part is handled separately in Worker.Recompute via
// domain.OrderKind.IsX2Y2. Each kind's balance-check applicability lives
// in its own strategy table entry rather than an inline branch.
type kindStrategy interface {
	// RequiresBalanceCheck reports whether fillability for this kind
	// depends on the maker's token/fund balance at all.
	RequiresBalanceCheck() bool
}

type balanceCheckedStrategy struct{}

func (balanceCheckedStrategy) RequiresBalanceCheck() bool { return true }

type escrowedStrategy struct{}

func (escrowedStrategy) RequiresBalanceCheck() bool { return false }

// strategyFor looks up the per-kind balance-check policy.
func strategyFor(kind domain.OrderKind) kindStrategy {
	if kind.IsEscrowed() {
		return escrowedStrategy{}
	}
	return balanceCheckedStrategy{}
}
