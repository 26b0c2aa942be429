package gateway

import (
	"fmt"
	"strconv"
	"strings"
)

const readingSystemPrompt = `You are a medical imaging specialist expert in reading glucose monitoring devices.
Your task is to accurately extract the blood glucose reading from the provided image.

Instructions:
1. Identify the numerical glucose value displayed on the device (e.g., 107, 5.6, 180)
2. Identify the unit of measurement shown on the device
3. Return ONLY the value and unit in this EXACT format: "VALUE UNIT"
   - For mg/dL units, respond like: "107 mg/dL" or "180 mg/dL"
   - For mmol/L units, respond like: "5.6 mmol/L" or "8.2 mmol/L"
4. If the unit is not visible, assume mg/dL
5. If you cannot read the value clearly, respond with "UNREADABLE"
6. Do not include brackets, quotes, or any other text`

const readingUserPrompt = "Please read the glucose monitor display and provide the blood glucose value and unit."

const chatSystemPrompt = `You are a helpful health information assistant specializing in diabetes management and glucose monitoring.
- Provide evidence-based, practical health guidance
- Keep responses concise and accessible (2-3 sentences max)
- Always remind users to consult healthcare providers for medical advice
- Focus on glucose management, nutrition, exercise, and wellness`

// Glucose status cut-offs for the chat context, in mg/dL.
const (
	highGlucoseMgDL = 200
	lowGlucoseMgDL  = 70
)

func glucoseStatus(value float64) string {
	switch {
	case value > highGlucoseMgDL:
		return "High"
	case value < lowGlucoseMgDL:
		return "Low"
	default:
		return "Normal"
	}
}

// buildChatSystemPrompt appends whatever screening context the caller sent.
func buildChatSystemPrompt(ctx *ChatContext) string {
	if ctx == nil {
		return chatSystemPrompt
	}

	var lines []string
	if ctx.GlucoseValue != nil {
		value := *ctx.GlucoseValue
		lines = append(lines, fmt.Sprintf("- Glucose Level: %s mg/dL (%s)",
			strconv.FormatFloat(value, 'f', -1, 64), glucoseStatus(value)))
	}
	if t := strings.TrimSpace(ctx.TestType); t != "" {
		lines = append(lines, "- Test Type: "+t)
	}
	if r := strings.TrimSpace(ctx.RiskLevel); r != "" {
		lines = append(lines, "- Risk Level: "+r)
	}

	if len(lines) == 0 {
		return chatSystemPrompt
	}
	return chatSystemPrompt + "\n\nCurrent User Context:\n" + strings.Join(lines, "\n")
}
