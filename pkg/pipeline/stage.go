// Package pipeline holds the media types shared by every stage of the capture pipeline.
package pipeline

// FrameConsumer receives frames pushed by an upstream stage.
// ConsumeFrame runs synchronously on the producer goroutine; the frame's buffer is
// only valid until it returns unless the consumer retains it.
type FrameConsumer interface {
	ConsumeFrame(frame Frame)
}

// FrameConsumerFunc is a function adapter for FrameConsumer.
type FrameConsumerFunc func(frame Frame)

// ConsumeFrame implements FrameConsumer.
func (f FrameConsumerFunc) ConsumeFrame(frame Frame) {
	f(frame)
}
