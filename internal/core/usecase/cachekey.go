package usecase

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/assetiq/assetiq/internal/core/domain"
)

// CacheKey folds functionally-identical queries together: case and
// whitespace differences collapse, while the resolved mode and the
// retrieval parameters stay part of the key so a count query and a list
// query over the same words never share an entry.
func CacheKey(rawQuery string, mode domain.Mode, topN, retrieverK int) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(rawQuery)), " ")
	sum := sha256.Sum256(fmt.Appendf(nil, "%s|%s|%d|%d", normalized, mode, topN, retrieverK))
	return hex.EncodeToString(sum[:])
}
