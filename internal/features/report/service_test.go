package report

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"go-fleetreport/internal/config"
	"go-fleetreport/internal/features/catalog"
	"go-fleetreport/internal/features/directory"
	"go-fleetreport/internal/features/event"
	"go-fleetreport/internal/features/option"
	"go-fleetreport/internal/metrics"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

const serviceDoc = `
<ReportDefinition>
  <Report name="trip.detail" type="device" class="event.detail">
    <MenuDescription>Trips</MenuDescription>
    <Title>Trip Detail</Title>
    <SimpleColumns>index,deviceId,speed</SimpleColumns>
  </Report>
  <Report name="fleet.count" type="fleet" class="event.count">
    <Title>Fleet Count</Title>
    <SimpleColumns>index,deviceId,deviceDesc,count</SimpleColumns>
    <Options type="custom"/>
  </Report>
  <Report name="admin.detail" type="table" class="event.detail" sysAdminOnly="true">
    <SimpleColumns>index</SimpleColumns>
  </Report>
</ReportDefinition>`

func newTestService(t *testing.T) (*ReportServiceImpl, *MemoryRunRepository) {
	t.Helper()
	root, err := catalog.DecodeXML(strings.NewReader(serviceDoc))
	require.NoError(t, err)

	store := event.NewMemoryStore(append(series("d1", 1700000000, 3), series("d2", 1700010000, 2)...)...)
	dir := &directory.MemoryRepository{Devices: []directory.Device{
		{ID: "d1", AccountID: acct, Description: "Truck 1"},
		{ID: "d2", AccountID: acct, Description: "Truck 2"},
	}}
	c := catalog.NewCatalog(catalog.Config{Bindings: DefaultKinds()}, zap.NewNop())
	runs := &MemoryRunRepository{}
	svc := NewReportService(c, newFactory(c, store, dir), catalog.TreeSource{Root: root}, runs, nil, metrics.NewMetrics(), zap.NewNop())

	res, err := svc.Reload(context.Background())
	require.NoError(t, err)
	require.False(t, res.HasErrors, res.Problems)
	return svc.(*ReportServiceImpl), runs
}

var (
	user  = Requester{AccountID: acct, UserID: "u1"}
	admin = Requester{AccountID: acct, UserID: "root", SysAdmin: true}
)

func TestReportService_ListReports(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	names := func(list []ReportSummary) []string {
		var out []string
		for _, r := range list {
			out = append(out, r.Name)
		}
		return out
	}
	assert.Equal(t, []string{"trip.detail", "fleet.count"}, names(svc.ListReports(ctx, user)))
	assert.Equal(t, []string{"trip.detail", "fleet.count", "admin.detail"}, names(svc.ListReports(ctx, admin)))

	list := svc.ListReports(ctx, user)
	assert.Equal(t, "Trips", list[0].Menu)
	assert.True(t, list[1].HasOptions)
}

func TestReportService_Access(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.GetReport(ctx, "admin.detail", user)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = svc.GetReport(ctx, "admin.detail", admin)
	assert.NoError(t, err)
	_, err = svc.GetReport(ctx, "missing", admin)
	assert.ErrorIs(t, err, catalog.ErrReportNotFound)

	_, err = svc.RunReport(ctx, "trip.detail", RunRequest{DeviceID: "d1"}, Requester{})
	assert.ErrorIs(t, err, ErrAccountMissing)
}

func TestReportService_RunReport(t *testing.T) {
	svc, runs := newTestService(t)
	ctx := context.Background()

	res, err := svc.RunReport(ctx, "trip.detail", RunRequest{DeviceID: "d1", ExcludeColumns: []string{"speed"}}, user)
	require.NoError(t, err)
	assert.Equal(t, "Trip Detail", res.Title)
	assert.Len(t, res.Columns, 2)
	assert.Equal(t, [][]any{{1, "d1"}, {2, "d1"}, {3, "d1"}}, res.Rows)
	assert.False(t, res.IsPartial)

	res, err = svc.RunReport(ctx, "fleet.count", RunRequest{GroupID: directory.GroupAll, Option: MotionAll}, user)
	require.NoError(t, err)
	assert.Equal(t, MotionAll, res.Option)
	assert.Equal(t, [][]any{{"", "", "Total", int64(5)}}, res.Totals)

	_, err = svc.RunReport(ctx, "fleet.count", RunRequest{}, user)
	assert.ErrorIs(t, err, ErrInvalidTarget)

	history, err := runs.List(ctx, acct, 0)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, "fleet.count", history[0].Report)
	assert.NotEmpty(t, history[0].Error)
	assert.Equal(t, "trip.detail", history[2].Report)
	assert.Equal(t, int64(3), history[2].Records)
	assert.Equal(t, "d1", history[2].Target.DeviceID)

	listed, err := svc.ListRuns(ctx, user, 1)
	require.NoError(t, err)
	assert.Len(t, listed, 1)
}

func TestReportService_ExportReport(t *testing.T) {
	svc, _ := newTestService(t)

	data, filename, err := svc.ExportReport(context.Background(), "trip.detail", RunRequest{DeviceID: "d2", Filename: "trips"}, user)
	require.NoError(t, err)
	assert.Equal(t, "trips.xlsx", filename)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{sheetName}, f.GetSheetList())
	title, _ := f.GetCellValue(sheetName, "A1")
	assert.Equal(t, "Trip Detail", title)
	header, _ := f.GetCellValue(sheetName, "B2")
	assert.Equal(t, "deviceId", header)
	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	assert.Len(t, rows, 4)
	assert.Equal(t, []string{"2", "d2", "50"}, rows[3])

	_, filename, err = svc.ExportReport(context.Background(), "trip.detail", RunRequest{DeviceID: "d2"}, user)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(filename, "trip_detail_"))
}

func TestExportToExcel_HeaderGroups(t *testing.T) {
	out := &Output{
		Columns: []catalog.Column{{Name: "deviceDesc"}, {Name: "count", Title: catalog.Text{Default: "Events"}}},
		HeaderGroups: []catalog.HeaderGroup{
			{Start: 0, Span: 2, Title: catalog.Text{Default: "Fleet"}},
		},
	}
	out.addRow(Row{"deviceDesc": "Truck 1", "count": int64(4)})
	out.addTotal(Row{"deviceDesc": "Total", "count": int64(4)})

	data, filename, err := ExportToExcel(out, "", "fleet.xlsx")
	require.NoError(t, err)
	assert.Equal(t, "fleet.xlsx", filename)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	merged, err := f.GetMergeCells(sheetName)
	require.NoError(t, err)
	require.Len(t, merged, 1)
	assert.Equal(t, "A1", merged[0].GetStartAxis())
	assert.Equal(t, "B1", merged[0].GetEndAxis())

	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"Fleet"}, {"deviceDesc", "Events"}, {"Truck 1", "4"}, {"Total", "4"}}, rows)
}

func TestReportService_ReloadAndHealth(t *testing.T) {
	svc, _ := newTestService(t)
	assert.Equal(t, 3, svc.Health().Reports)
	assert.False(t, svc.Health().HasErrors)

	svc.Source = nil
	_, err := svc.Reload(context.Background())
	assert.ErrorIs(t, err, ErrNoSource)
}

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()
	svc, _ := newTestService(t)
	app := fiber.New()
	NewReportApi(NewReportController(svc), &config.Config{SkipAuth: true}).Setup(app)
	return app
}

func doRequest(t *testing.T, app *fiber.App, method, path, body string) (int, []byte) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

func TestReportApi(t *testing.T) {
	app := newTestApp(t)

	status, body := doRequest(t, app, "GET", "/api/reports", "")
	assert.Equal(t, fiber.StatusOK, status)
	var list []ReportSummary
	require.NoError(t, json.Unmarshal(body, &list))
	assert.Len(t, list, 3)

	status, _ = doRequest(t, app, "GET", "/api/reports/trip.detail", "")
	assert.Equal(t, fiber.StatusOK, status)
	status, _ = doRequest(t, app, "GET", "/api/reports/missing", "")
	assert.Equal(t, fiber.StatusNotFound, status)

	status, body = doRequest(t, app, "GET", "/api/reports/fleet.count/options", "")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Contains(t, string(body), MotionMoving)

	status, body = doRequest(t, app, "POST", "/api/reports/trip.detail/run", `{"deviceID":"d1","timeStart":1700000060}`)
	require.Equal(t, fiber.StatusOK, status, string(body))
	var res RunResult
	require.NoError(t, json.Unmarshal(body, &res))
	assert.Len(t, res.Rows, 2)

	status, _ = doRequest(t, app, "POST", "/api/reports/trip.detail/run", `{"deviceID":"d1","unknown":true}`)
	assert.Equal(t, fiber.StatusBadRequest, status)
	status, _ = doRequest(t, app, "POST", "/api/reports/fleet.count/run", `{}`)
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, body = doRequest(t, app, "GET", "/api/reports/runs", "")
	assert.Equal(t, fiber.StatusOK, status)
	var runs []RunRecord
	require.NoError(t, json.Unmarshal(body, &runs))
	assert.Len(t, runs, 2)

	status, _ = doRequest(t, app, "GET", "/api/reports/health", "")
	assert.Equal(t, fiber.StatusOK, status)
	status, _ = doRequest(t, app, "POST", "/api/reports/reload", "")
	assert.Equal(t, fiber.StatusOK, status)
}

func TestReportApi_Export(t *testing.T) {
	app := newTestApp(t)

	req := httptest.NewRequest("POST", "/api/reports/trip.detail/export", strings.NewReader(`{"deviceID":"d1","filename":"d1-trips"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "attachment; filename=d1-trips.xlsx", resp.Header.Get("Content-Disposition"))
}

func TestParseRunRequest(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    RunRequest
		wantErr bool
	}{
		{name: "empty body", body: "  "},
		{name: "device", body: `{"deviceID":"d1","timeStart":10,"timeEnd":20}`, want: RunRequest{DeviceID: "d1", TimeStart: 10, TimeEnd: 20}},
		{name: "columns", body: `{"groupID":"all","excludeColumns":["speed"]}`, want: RunRequest{GroupID: "all", ExcludeColumns: []string{"speed"}}},
		{name: "unknown field", body: `{"device":"d1"}`, wantErr: true},
		{name: "negative time", body: `{"timeStart":-5}`, wantErr: true},
		{name: "fractional time", body: `{"timeStart":1.5}`, wantErr: true},
		{name: "reversed range", body: `{"timeStart":20,"timeEnd":10}`, wantErr: true},
		{name: "bad filename", body: `{"filename":"../etc/passwd"}`, wantErr: true},
		{name: "empty device list", body: `{"deviceIDs":[]}`, wantErr: true},
		{name: "not json", body: `deviceID=d1`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRunRequest([]byte(tt.body))
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidRequest)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRunRequest_Target(t *testing.T) {
	assert.Equal(t, DeviceTarget("d1"), RunRequest{DeviceID: "d1", GroupID: "all"}.Target())
	assert.Equal(t, DevicesTarget("d1", "d2"), RunRequest{DeviceIDs: []string{"d1", "d2"}, DriverID: "x"}.Target())
	assert.Equal(t, GroupTarget("all"), RunRequest{GroupID: "all"}.Target())
	assert.Equal(t, DriverTarget("x"), RunRequest{DriverID: "x"}.Target())
	assert.Equal(t, Target{}, RunRequest{}.Target())
}

func TestReportService_StatusCodeOptions(t *testing.T) {
	const doc = `
<ReportDefinition>
  <Report name="status.detail" type="device" class="event.detail">
    <SimpleColumns>index,statusCode</SimpleColumns>
    <Options type="status-codes"/>
  </Report>
</ReportDefinition>`
	newService := func(codes map[int]string) ReportService {
		root, err := catalog.DecodeXML(strings.NewReader(doc))
		require.NoError(t, err)
		c := catalog.NewCatalog(catalog.Config{Bindings: DefaultKinds()}, zap.NewNop())
		svc := NewReportService(c, newFactory(c, event.NewMemoryStore(), nil), catalog.TreeSource{Root: root}, nil, codes, nil, zap.NewNop())
		res, err := svc.Reload(context.Background())
		require.NoError(t, err)
		require.False(t, res.HasErrors, res.Problems)
		return svc
	}

	set, err := newService(nil).ListOptions(context.Background(), "status.detail", user)
	require.NoError(t, err)
	assert.Equal(t, len(option.DefaultStatusCodes()), set.Len())
	loc, ok := set.Get("0xF020")
	require.True(t, ok)
	assert.Equal(t, "Location", loc.Description)

	cfg := &config.Config{ReportStatusCodes: "0xF113=Parked,0xF111=Departed"}
	codes, err := StatusCodeTable(cfg)
	require.NoError(t, err)
	set, err = newService(codes).ListOptions(context.Background(), "status.detail", user)
	require.NoError(t, err)
	assert.Equal(t, []string{"0xF111", "0xF113"}, set.IDs())

	_, err = StatusCodeTable(&config.Config{ReportStatusCodes: "parked=Parked"})
	assert.ErrorContains(t, err, "REPORT_STATUS_CODES")
	codes, err = StatusCodeTable(&config.Config{})
	require.NoError(t, err)
	assert.Nil(t, codes)
}
