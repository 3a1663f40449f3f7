package connectors

const (
	TopicAPRSStatus = "aprs.status"
	TopicReport     = "gateway.report"
)
