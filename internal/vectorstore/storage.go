package vectorstore

import (
	"errors"
	"strconv"

	"github.com/google/uuid"
)

// ErrUnavailable marks failures to reach the vector store, as opposed to a
// reachable store that simply holds no matching chunks.
var ErrUnavailable = errors.New("vector store unavailable")

// ErrDimensionMismatch is returned when vectors do not fit the collection.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// DefaultCollection is the collection shared by ingestion and chat.
const DefaultCollection = "astrology-zodiac"

var pointNamespace = uuid.MustParse("5b6f1c1e-3c1a-4f43-9a57-1d1a7f2c9e10")

// PointID derives a stable identifier for a chunk so re-running an
// ingestion overwrites points instead of duplicating them.
func PointID(source string, index int, text string) string {
	name := source + "\x00" + strconv.Itoa(index) + "\x00" + text
	return uuid.NewSHA1(pointNamespace, []byte(name)).String()
}
