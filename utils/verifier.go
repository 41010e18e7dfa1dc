package utils

import (
	"net"
	"strings"
	"sync"

	"github.com/badoux/checkmail"
	"github.com/likexian/whois"
)

// VerificationResult summarizes a single-address deliverability check.
type VerificationResult struct {
	Email        string `json:"email"`
	Status       string `json:"status"` // valid, invalid, disposable, unknown
	Details      string `json:"details"`
	IsReachable  bool   `json:"is_reachable"`
	IsBounceRisk bool   `json:"is_bounce_risk"`
	WHOIS        string `json:"whois,omitempty"`
}

var (
	disposableDomains = map[string]bool{
		"mailinator.com":    true,
		"guerrillamail.com": true,
		"10minutemail.com":  true,
		"tempmail.com":      true,
		"throwawaymail.com": true,
		"trashmail.com":     true,
		"yopmail.com":       true,
		"sharklasers.com":   true,
		"getnada.com":       true,
		"dispostable.com":   true,
	}

	// Common domain typos
	commonTypos = map[string]string{
		"gmai.com":   "gmail.com",
		"gmal.com":   "gmail.com",
		"gmail.co":   "gmail.com",
		"yaho.com":   "yahoo.com",
		"hotmai.com": "hotmail.com",
		"outlok.com": "outlook.com",
	}

	// Domain to MX cache
	mxCache = struct {
		sync.RWMutex
		m map[string][]*net.MX
	}{m: make(map[string][]*net.MX)}
)

// VerifyEmailAddress performs a deliverability check on one address:
// syntax, typo detection, disposable-domain screening, MX lookups and
// WHOIS enrichment.
func VerifyEmailAddress(email string) (*VerificationResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	result := &VerificationResult{
		Email:        email,
		Status:       "unknown",
		IsReachable:  false,
		IsBounceRisk: true,
	}

	if err := checkmail.ValidateFormat(email); err != nil {
		result.Status = "invalid"
		result.Details = "Invalid email format: " + err.Error()
		return result, nil
	}

	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		result.Status = "invalid"
		result.Details = "Invalid email format"
		return result, nil
	}
	localPart, domain := parts[0], parts[1]

	if suggested, ok := commonTypos[domain]; ok {
		result.Status = "invalid"
		result.Details = "Possible typo, did you mean " + localPart + "@" + suggested + "?"
		return result, nil
	}

	if disposableDomains[domain] {
		result.Status = "disposable"
		result.Details = "Disposable email domain"
		return result, nil
	}

	if err := checkmail.ValidateHost(domain); err != nil {
		result.Status = "invalid"
		result.Details = "Domain validation failed: " + err.Error()
		return result, nil
	}

	mxRecords, err := getMXRecords(domain)
	if err != nil || len(mxRecords) == 0 {
		result.Status = "invalid"
		result.Details = "Domain has no MX records"
		return result, nil
	}

	result.Status = "valid"
	result.Details = "Mail exchanger found: " + strings.TrimSuffix(mxRecords[0].Host, ".")
	result.IsReachable = true
	result.IsBounceRisk = false

	if whoisInfo, err := whois.Whois(domain); err == nil {
		result.WHOIS = whoisInfo
	}

	return result, nil
}

// ExtractDomain extracts the domain from an email address
func ExtractDomain(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) == 2 {
		return parts[1]
	}
	return ""
}

func getMXRecords(domain string) ([]*net.MX, error) {
	mxCache.RLock()
	if records, ok := mxCache.m[domain]; ok {
		mxCache.RUnlock()
		return records, nil
	}
	mxCache.RUnlock()

	records, err := net.LookupMX(domain)
	if err != nil {
		return nil, err
	}

	mxCache.Lock()
	mxCache.m[domain] = records
	mxCache.Unlock()

	return records, nil
}
