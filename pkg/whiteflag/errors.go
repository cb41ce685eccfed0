// Package whiteflag implements Component H: the iterative DFS
// confirmation walk from a milestone's tail message, deterministic
// conflict resolution over the legacy ledger's per-address locks, and
// the ledger diff it produces, per spec.md §4.H. Grounded directly on
// original_source's bee-ledger white_flag.rs visit_dfs/on_message.
package whiteflag

import (
	"fmt"

	"github.com/iotaledger/hornet-tangle-core/pkg/hornet"
)

// MissingMessageError is returned when the walk reaches a message id
// that is neither present in the tangle nor a solid entry point. The
// solidifier treats this as a failed confirmation attempt: it does not
// bump the solid index and instead requests the missing message.
type MissingMessageError struct {
	MessageID hornet.MessageId
}

func (e *MissingMessageError) Error() string {
	return fmt.Sprintf("whiteflag: missing message %s", e.MessageID.Hex())
}
