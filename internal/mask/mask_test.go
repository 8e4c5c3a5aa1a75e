package mask

import "testing"

func TestIsSensitiveKey(t *testing.T) {
	cases := map[string]bool{
		"DB_PASSWORD":    true,
		"API_TOKEN":      true,
		"STRIPE_SECRET":  true,
		"SSH_KEY":        true,
		"db_password":    true,
		"PUBLIC_URL":     false,
		"SERVICE_PORT":   false,
	}
	for k, want := range cases {
		if got := IsSensitiveKey(k); got != want {
			t.Errorf("IsSensitiveKey(%q) = %v, want %v", k, got, want)
		}
	}
}

func TestEnvironmentMasksWithoutMutating(t *testing.T) {
	in := map[string]string{
		"DB_PASSWORD": "hunter2",
		"PUBLIC_URL":  "https://example.com",
	}
	out := Environment(in)

	if out["DB_PASSWORD"] != MaskedValue {
		t.Errorf("expected masked password, got %q", out["DB_PASSWORD"])
	}
	if out["PUBLIC_URL"] != "https://example.com" {
		t.Errorf("non-sensitive value should pass through unchanged")
	}
	if in["DB_PASSWORD"] != "hunter2" {
		t.Error("Environment must not mutate its input map")
	}
}
