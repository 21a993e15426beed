// stop_test.go -- shutdown tests
//
// Author: Sudhi Herle <sudhi@herle.net>
//
// This software does not come with any express or implied
// warranty; it is provided "as is". No claim  is made to its
// suitability for any purpose.

package engine

import (
	"context"
	"strings"
	"sync"
	"testing"

	L "github.com/opencoff/go-logger"

	"github.com/opencoff/gofront/internal/config"
)

// counts log lines containing 'match'
type lineCounter struct {
	sync.Mutex
	match string
	n     int
}

func (c *lineCounter) Write(b []byte) (int, error) {
	c.Lock()
	c.n += strings.Count(string(b), c.match)
	c.Unlock()
	return len(b), nil
}

func (c *lineCounter) count() int {
	c.Lock()
	defer c.Unlock()
	return c.n
}

func TestStopOnce(t *testing.T) {
	assert := newAsserter(t)

	lc := &lineCounter{match: "engine shutdown complete"}
	log, err := L.New(lc, L.LOG_DEBUG, "gofront-test", 0)
	assert(err == nil, "logger: %s", err)

	be := newEcho(t)
	e := newEngine(t, config.Defaults(), Options{Backend: be.address()})
	e.Log = log

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = e.Run(ctx)
	assert(err == nil, "run: %s", err)

	e.Stop()
	e.Stop()
	assert(lc.count() == 1, "exp one shutdown, saw %d", lc.count())
}
