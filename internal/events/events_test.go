package events

import (
	"context"
	"testing"
)

func TestSubject(t *testing.T) {
	for _, tc := range []struct {
		prefix string
		topic  Topic
		want   string
	}{
		{"eventdesk", TopicEvents, "eventdesk.events"},
		{"eventdesk", TopicRetry, "eventdesk.retry"},
		{"sap.integration", TopicRetry, "sap.integration.retry"},
	} {
		if got := Subject(tc.prefix, tc.topic); got != tc.want {
			t.Errorf("Subject(%q, %q) = %q, want %q", tc.prefix, tc.topic, got, tc.want)
		}
	}
}

func TestNoopPublisher_Publish(t *testing.T) {
	pub := &NoopPublisher{}
	err := pub.Publish(context.Background(), TopicEvents, "PO-001", map[string]string{"orderId": "PO-001"})
	if err != nil {
		t.Fatalf("NoopPublisher.Publish returned unexpected error: %v", err)
	}
}

func TestNoopPublisher_Close(t *testing.T) {
	pub := &NoopPublisher{}
	if err := pub.Close(); err != nil {
		t.Fatalf("NoopPublisher.Close returned unexpected error: %v", err)
	}
}

func TestImplementsInterfaces(t *testing.T) {
	var _ Publisher = (*NoopPublisher)(nil)
	var _ Publisher = (*NATSBus)(nil)
	var _ Subscriber = (*NATSBus)(nil)
}
