package logging

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type capturingLogger struct {
	messages []string
}

func (c *capturingLogger) log(args ...interface{}) {
	c.messages = append(c.messages, fmt.Sprint(args...))
}

func (c *capturingLogger) Debug(args ...interface{})            { c.log(args...) }
func (c *capturingLogger) Debugf(t string, args ...interface{}) { c.log(fmt.Sprintf(t, args...)) }
func (c *capturingLogger) Info(args ...interface{})             { c.log(args...) }
func (c *capturingLogger) Infof(t string, args ...interface{})  { c.log(fmt.Sprintf(t, args...)) }
func (c *capturingLogger) Warn(args ...interface{})             { c.log(args...) }
func (c *capturingLogger) Warnf(t string, args ...interface{})  { c.log(fmt.Sprintf(t, args...)) }
func (c *capturingLogger) Error(args ...interface{})            { c.log(args...) }
func (c *capturingLogger) Errorf(t string, args ...interface{}) { c.log(fmt.Sprintf(t, args...)) }
func (c *capturingLogger) Fatalf(t string, args ...interface{}) { c.log(fmt.Sprintf(t, args...)) }

func TestGetLoggerIsCached(t *testing.T) {
	a := GetLogger("cache-test")
	b := GetLogger("cache-test")
	assert.Same(t, a, b)
}

func TestSugaredLoggerSatisfiesStandardLogger(t *testing.T) {
	var _ StandardLogger = GetLogger("iface-test")
}

func TestThrottledLoggerSuppressesSpam(t *testing.T) {
	capture := &capturingLogger{}
	tl := NewThrottledLogger("spam", capture, 50*time.Millisecond)

	for i := 0; i < 5; i++ {
		tl.Infof("message %d", i)
	}

	// only the first message passes; the rest are counted as suppressed
	assert.Len(t, capture.messages, 1)
	assert.Contains(t, capture.messages[0], "spam: message 0")

	// once the interval elapses, the next message reports the drop count
	time.Sleep(60 * time.Millisecond)
	tl.Infof("message 5")
	assert.Len(t, capture.messages, 2)
	assert.Contains(t, capture.messages[1], "spam: message 5")
	assert.Contains(t, capture.messages[1], "suppressed 4")
}
