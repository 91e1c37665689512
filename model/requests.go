// model/requests.go
package model

type InvalidationRequest struct {
	SubjectID     string `json:"subject_id" binding:"required"`
	PolicyVersion string `json:"policy_version" binding:"required"`
}

type WarmRequest struct {
	SubjectID string `json:"subject_id"`
	// Window is a Go duration string such as "6h". Empty uses the default.
	Window string `json:"window"`
}

type RotatePolicyRequest struct {
	SubjectID        string `json:"subject_id" binding:"required"`
	OldPolicyVersion string `json:"old_policy_version" binding:"required"`
	Window           string `json:"window"`
}
