package dto

import "encoding/xml"

// SmsWebhookRequest is the subset of the provider's inbound form we read.
type SmsWebhookRequest struct {
	From string `form:"From"`
	Body string `form:"Body"`
}

// TwiMLResponse is the messaging reply returned to the provider.
type TwiMLResponse struct {
	XMLName xml.Name `xml:"Response"`
	Message string   `xml:"Message"`
}
