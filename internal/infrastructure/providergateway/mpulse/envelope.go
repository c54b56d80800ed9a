package mpulse

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"

	vo "github.com/jaxspot/billing/internal/domain/subscription/valueobjects"
)

const (
	soapEnvNS = "http://schemas.xmlsoap.org/soap/envelope/"
	wapNS     = "http://billing.mpulse.eu/france/wapbilling"
)

type startSubscriptionRequest struct {
	XMLName     xml.Name `xml:"wap:startSubscriptionExtended"`
	Name        string   `xml:"name"`
	IPAddress   string   `xml:"ipAddress"`
	RedirectURL string   `xml:"redirectUrl"`
	Alias       string   `xml:"alias"`
	Operator    string   `xml:"operator"`
	Reference   string   `xml:"reference"`
}

type subscriptionStatusRequest struct {
	XMLName        xml.Name `xml:"wap:getSubscriptionStatus"`
	SubscriptionID string   `xml:"subscriptionId"`
}

type cancelSubscriptionRequest struct {
	XMLName        xml.Name `xml:"wap:cancelSubscription"`
	SubscriptionID string   `xml:"subscriptionId"`
}

type requestEnvelope struct {
	XMLName xml.Name `xml:"soapenv:Envelope"`
	SoapEnv string   `xml:"xmlns:soapenv,attr"`
	Wap     string   `xml:"xmlns:wap,attr"`
	Header  struct{} `xml:"soapenv:Header"`
	Body    struct {
		Payload any
	} `xml:"soapenv:Body"`
}

// encodeEnvelope wraps payload in a SOAP 1.1 envelope using the wapbilling
// namespace prefix the gateway expects.
func encodeEnvelope(payload any) ([]byte, error) {
	env := requestEnvelope{SoapEnv: soapEnvNS, Wap: wapNS}
	env.Body.Payload = payload

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	if err := xml.NewEncoder(&buf).Encode(env); err != nil {
		return nil, fmt.Errorf("failed to encode soap envelope: %w", err)
	}
	return buf.Bytes(), nil
}

// Response elements are matched on local name only, so the prefixes the
// gateway chooses do not matter.
type responseEnvelope struct {
	Body responseBody `xml:"Body"`
}

type responseBody struct {
	Fault  *soapFault               `xml:"Fault"`
	Start  *startSubscriptionResult `xml:"startSubscriptionExtendedResponse>return"`
	Status *statusResult            `xml:"getSubscriptionStatusResponse>return"`
	Cancel *cancelResult            `xml:"cancelSubscriptionResponse>return"`
}

type soapFault struct {
	FaultString string `xml:"faultstring"`
}

type startSubscriptionResult struct {
	ID          string `xml:"id"`
	RedirectURL string `xml:"redirectUrl"`
}

type statusResult struct {
	Status string `xml:"status"`
}

type cancelResult struct {
	RedirectURL string `xml:"redirectUrl"`
}

func decodeEnvelope(data []byte) (*responseBody, error) {
	var env responseEnvelope
	if err := xml.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to decode soap response: %w", err)
	}
	return &env.Body, nil
}

// mapStatus normalizes the gateway's status vocabulary. Anything it does not
// recognise is unknown.
func mapStatus(raw string) vo.SubscriptionStatus {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "ACTIVE":
		return vo.StatusActive
	case "CANCEL", "STOPPED":
		return vo.StatusCanceled
	case "PENDING":
		return vo.StatusPending
	default:
		return vo.StatusUnknown
	}
}
