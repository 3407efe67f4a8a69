package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordHTTPRequest(t *testing.T) {
	HTTPRequestsTotal.Reset()
	HTTPRequestDuration.Reset()

	RecordHTTPRequest("POST", "/api/v1/tasks", "200", 0.123)

	counter := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("POST", "/api/v1/tasks", "200"))
	if counter != 1.0 {
		t.Errorf("Expected counter to be 1.0, got %f", counter)
	}
}

func TestRecordTaskRequest(t *testing.T) {
	assigned := testutil.ToFloat64(TasksAssignedTotal)
	empty := testutil.ToFloat64(TaskRequestsEmptyTotal)

	RecordTaskRequest(true)
	RecordTaskRequest(true)
	RecordTaskRequest(false)

	if got := testutil.ToFloat64(TasksAssignedTotal) - assigned; got != 2.0 {
		t.Errorf("Expected 2 assigned tasks, got %f", got)
	}
	if got := testutil.ToFloat64(TaskRequestsEmptyTotal) - empty; got != 1.0 {
		t.Errorf("Expected 1 empty request, got %f", got)
	}
}

func TestRecordResolution(t *testing.T) {
	TasksResolvedTotal.Reset()
	ResolutionConflictsTotal.Reset()

	RecordResolution("valid", true, 30)
	RecordResolution("auto_approved", true, 1200)
	RecordResolution("auto_approved", false, 0)

	if got := testutil.ToFloat64(TasksResolvedTotal.WithLabelValues("valid")); got != 1.0 {
		t.Errorf("Expected 1 valid resolution, got %f", got)
	}
	if got := testutil.ToFloat64(TasksResolvedTotal.WithLabelValues("auto_approved")); got != 1.0 {
		t.Errorf("Expected 1 auto approval, got %f", got)
	}
	if got := testutil.ToFloat64(ResolutionConflictsTotal.WithLabelValues("auto_approved")); got != 1.0 {
		t.Errorf("Expected 1 conflict, got %f", got)
	}
}

func TestRecordStrikeAndAccessDenied(t *testing.T) {
	StrikesIssuedTotal.Reset()
	AccessDeniedTotal.Reset()

	RecordStrike("viewer")
	RecordStrike("owner")
	RecordStrike("viewer")
	RecordAccessDenied("subscription_required")

	if got := testutil.ToFloat64(StrikesIssuedTotal.WithLabelValues("viewer")); got != 2.0 {
		t.Errorf("Expected 2 viewer strikes, got %f", got)
	}
	if got := testutil.ToFloat64(AccessDeniedTotal.WithLabelValues("subscription_required")); got != 1.0 {
		t.Errorf("Expected 1 denial, got %f", got)
	}
}

func TestSetReviewTimersArmed(t *testing.T) {
	SetReviewTimersArmed(7)

	if got := testutil.ToFloat64(ReviewTimersArmed); got != 7.0 {
		t.Errorf("Expected 7 armed timers, got %f", got)
	}
}

func TestRecordNotification(t *testing.T) {
	NotificationsTotal.Reset()

	RecordNotification("proof_submitted", "delivered")
	RecordNotification("proof_submitted", "unreachable")

	if got := testutil.ToFloat64(NotificationsTotal.WithLabelValues("proof_submitted", "delivered")); got != 1.0 {
		t.Errorf("Expected 1 delivered notification, got %f", got)
	}
}

func TestRecordStorageOperation(t *testing.T) {
	StorageOperationsTotal.Reset()
	StorageBytesTransferred.Reset()

	RecordStorageOperation("upload", "success", 1.234, 1048576)

	counter := testutil.ToFloat64(StorageOperationsTotal.WithLabelValues("upload", "success"))
	if counter != 1.0 {
		t.Errorf("Expected storage operation counter to be 1.0, got %f", counter)
	}

	bytes := testutil.ToFloat64(StorageBytesTransferred.WithLabelValues("upload"))
	if bytes != 1048576.0 {
		t.Errorf("Expected bytes transferred to be 1048576.0, got %f", bytes)
	}
}

func TestRecordDatabaseOperation(t *testing.T) {
	DatabaseOperationsTotal.Reset()

	RecordDatabaseOperation("assign_task", "ok", 0.05)
	RecordDatabaseOperation("resolve_task", "error", 0.02)

	if got := testutil.ToFloat64(DatabaseOperationsTotal.WithLabelValues("assign_task", "ok")); got != 1.0 {
		t.Errorf("Expected assign_task counter to be 1.0, got %f", got)
	}
	if got := testutil.ToFloat64(DatabaseOperationsTotal.WithLabelValues("resolve_task", "error")); got != 1.0 {
		t.Errorf("Expected resolve_task error counter to be 1.0, got %f", got)
	}
}

func TestRecordError(t *testing.T) {
	ErrorsTotal.Reset()

	RecordError("api", "validation")
	RecordError("worker", "delivery")
	RecordError("api", "validation")

	if got := testutil.ToFloat64(ErrorsTotal.WithLabelValues("api", "validation")); got != 2.0 {
		t.Errorf("Expected API validation errors to be 2.0, got %f", got)
	}
	if got := testutil.ToFloat64(ErrorsTotal.WithLabelValues("worker", "delivery")); got != 1.0 {
		t.Errorf("Expected worker delivery errors to be 1.0, got %f", got)
	}
}

func BenchmarkRecordHTTPRequest(b *testing.B) {
	for i := 0; i < b.N; i++ {
		RecordHTTPRequest("POST", "/api/v1/tasks", "200", 0.123)
	}
}
