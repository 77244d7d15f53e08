// Copyright (c) 2026 The multifarm developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package multifarm

import "github.com/holiman/uint256"

// Constants of the reward-distribution engine.
const (
	// ScaleUnits is the fixed-point scale applied by the two chained cumulative
	// ratios (reward per unit weight, then reward per staked unit).
	//
	// With 256-bit arithmetic and 512-bit intermediates for mul-div, a scaled
	// quantity only overflows when amount*ScaleUnits/denominator itself exceeds
	// 2^256-1, i.e. amounts beyond ~1.1e59 base units. Operations fail closed at
	// that bound instead of wrapping.
	ScaleUnits = uint64(1_000_000_000_000_000_000)

	// SchemaVersion tags the persistent record layout. Layout changes are
	// additive only; decoders accept records written by older versions.
	SchemaVersion = uint32(1)
)

// Scale returns the fixed-point scale as a 256-bit integer.
func Scale() *uint256.Int {
	return uint256.NewInt(ScaleUnits)
}
