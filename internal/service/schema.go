package service

// Baseline shape of a freshly provisioned tenant database. Statements are
// executed one at a time on the tenant handle; each is idempotent so a
// retried provisioning run can re-apply them over a half-created database.
var tenantSchema = []string{
	`CREATE TABLE IF NOT EXISTS staff_accounts (
		id UUID PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		display_name TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL DEFAULT 'staff',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS business_settings (
		id SMALLINT PRIMARY KEY CHECK (id = 1),
		business_name TEXT NOT NULL DEFAULT '',
		timezone TEXT NOT NULL DEFAULT 'UTC',
		currency TEXT NOT NULL DEFAULT 'USD',
		appointment_slot_minutes INT NOT NULL DEFAULT 30,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS service_categories (
		id UUID PRIMARY KEY,
		name TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS suppliers (
		id UUID PRIMARY KEY,
		name TEXT NOT NULL,
		contact_phone TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS clients (
		id UUID PRIMARY KEY,
		name TEXT NOT NULL,
		phone TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS appointments (
		id UUID PRIMARY KEY,
		client_id UUID REFERENCES clients(id),
		staff_id UUID REFERENCES staff_accounts(id),
		category_id UUID REFERENCES service_categories(id),
		starts_at TIMESTAMPTZ NOT NULL,
		ends_at TIMESTAMPTZ NOT NULL,
		status TEXT NOT NULL DEFAULT 'booked',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS sales (
		id UUID PRIMARY KEY,
		client_id UUID REFERENCES clients(id),
		staff_id UUID REFERENCES staff_accounts(id),
		total_cents BIGINT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}

const (
	seedAdminQuery = `INSERT INTO staff_accounts (id, email, password_hash, display_name, role)
         VALUES ($1, $2, $3, $4, 'admin') ON CONFLICT (email) DO NOTHING`
	seedSettingsQuery = `INSERT INTO business_settings (id, business_name, timezone, currency)
         VALUES (1, $1, 'UTC', 'USD') ON CONFLICT (id) DO NOTHING`
)
