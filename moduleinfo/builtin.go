package moduleinfo

import (
	"github.com/dvhost/dvhost/components/io"
	"github.com/dvhost/dvhost/components/stats"
	"github.com/dvhost/dvhost/components/transform"
)

// init registers every built-in module into Default, the same way a
// discovered dynamic library registers itself after Loader.Discover opens
// it — built-ins simply arrive at process start instead of from a scan.
func init() {
	Default.Register("FileSource", io.NewFileSource())
	Default.Register("FileSink", io.NewFileSink())
	Default.Register("TCPSource", io.NewTCPSource())
	Default.Register("TCPSink", io.NewTCPSink())
	Default.Register("UnixSource", io.NewUnixSource())
	Default.Register("UnixSink", io.NewUnixSink())
	Default.Register("MQTTSource", io.NewMQTTSource())
	Default.Register("MQTTSink", io.NewMQTTSink())

	Default.Register("ExprFilter", transform.NewExprFilter())
	Default.Register("ExprSwitch", transform.NewExprSwitch())
	Default.Register("JSFilter", transform.NewJSFilter())
	Default.Register("NoiseFilter", transform.NewNoiseFilter())
	Default.Register("FrameEnhancer", transform.NewFrameEnhancer())

	Default.Register("PacketStatistics", stats.NewPacketStatistics())
}
