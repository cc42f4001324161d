package healthloop

import "testing"

func TestLogAlertSink_SatisfiesAlertSink(t *testing.T) {
	var sink AlertSink = LogAlertSink{}
	sink.Alert("ollama", "connection refused")
	sink.Recovered("ollama")
}
