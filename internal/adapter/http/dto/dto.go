package dto

// SubscribeHookRequest is the REST-hook subscription body. Zapier sends the
// target under hookUrl.
type SubscribeHookRequest struct {
	Event   string `json:"event" binding:"required"`
	HookURL string `json:"hookUrl" binding:"required,url"`
}

// SubscribeHookResponse confirms a subscription. Zapier stores the id and
// presents it back on unsubscribe.
type SubscribeHookResponse struct {
	ID    string `json:"id"`
	Event string `json:"event"`
}

// HookSubscriptionResponse is one subscription in a listing.
type HookSubscriptionResponse struct {
	ID        string `json:"id"`
	Event     string `json:"event"`
	TargetURL string `json:"target_url"`
	Active    bool   `json:"active"`
	CreatedAt string `json:"created_at"`
}

// MeResponse answers the automation platform's auth test.
type MeResponse struct {
	AccountID string `json:"account_id"`
}

// CreateWebhookRequest is the body for webhook registration.
type CreateWebhookRequest struct {
	Name    string            `json:"name" binding:"required,min=1,max=100"`
	URL     string            `json:"url" binding:"required,url"`
	Events  []string          `json:"events" binding:"required,min=1"`
	Headers map[string]string `json:"headers,omitempty"`
}

// UpdateWebhookRequest is the body for webhook updates. Omitted fields keep
// their current values.
type UpdateWebhookRequest struct {
	Name    *string           `json:"name,omitempty"`
	URL     *string           `json:"url,omitempty" binding:"omitempty,url"`
	Events  []string          `json:"events,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
	Active  *bool             `json:"active,omitempty"`
}

// WebhookResponse is a webhook in API responses. Secret is present only on
// creation and rotation.
type WebhookResponse struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	URL       string            `json:"url"`
	Secret    string            `json:"secret,omitempty"`
	Events    []string          `json:"events"`
	Headers   map[string]string `json:"headers,omitempty"`
	Active    bool              `json:"active"`
	CreatedAt string            `json:"created_at"`
	UpdatedAt string            `json:"updated_at"`
}

// DeliveryOutcomeResponse reports one delivery attempt.
type DeliveryOutcomeResponse struct {
	Success    bool   `json:"success"`
	StatusCode *int   `json:"status_code,omitempty"`
	Error      string `json:"error,omitempty"`
}

// DeliveryLogResponse is one row of a destination's delivery history.
type DeliveryLogResponse struct {
	ID         string `json:"id"`
	Event      string `json:"event"`
	StatusCode *int   `json:"status_code,omitempty"`
	Success    bool   `json:"success"`
	Error      string `json:"error,omitempty"`
	CreatedAt  string `json:"created_at"`
}

// TestCredentialsRequest is the body for an ad-hoc provider credential test.
type TestCredentialsRequest struct {
	Type        string            `json:"type" binding:"required"`
	Credentials map[string]string `json:"credentials" binding:"required"`
}

// IdentityResponse is the provider identity returned by a credential test.
type IdentityResponse struct {
	Detail map[string]string `json:"detail"`
}

// ContainerResponse is one discovered push target.
type ContainerResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Kind string `json:"kind"`
}

// AnswerPayload is one submitted answer inside a dispatch request.
type AnswerPayload struct {
	FieldID    string      `json:"fieldId" binding:"required"`
	FieldLabel string      `json:"fieldLabel"`
	FieldType  string      `json:"fieldType"`
	Value      interface{} `json:"value"`
}

// DispatchSubmissionRequest is the internal trigger body: one completed
// submission with its owning form and account.
type DispatchSubmissionRequest struct {
	AccountID    string          `json:"account_id" binding:"required,uuid"`
	SubmissionID string          `json:"submission_id" binding:"required,uuid"`
	FormID       string          `json:"form_id" binding:"required,uuid"`
	FormTitle    string          `json:"form_title" binding:"required"`
	FormPublicID string          `json:"form_public_id"`
	CompletedAt  string          `json:"completed_at" binding:"required"`
	Answers      []AnswerPayload `json:"answers"`
}

// FormEventRequest is the internal trigger body for form lifecycle events.
type FormEventRequest struct {
	AccountID    string `json:"account_id" binding:"required,uuid"`
	Event        string `json:"event" binding:"required"`
	FormID       string `json:"form_id" binding:"required,uuid"`
	FormTitle    string `json:"form_title" binding:"required"`
	FormPublicID string `json:"form_public_id"`
}
