// Package schema holds the PostgreSQL schema of the ERP as ordered migrations.
package schema

import "github.com/odyssey-erp/bakery-erp/internal/platform/db"

// Migrations lists every schema change in version order.
var Migrations = []db.Migration{
	{Version: "0001", Name: "masters", Up: masters},
	{Version: "0002", Name: "accounting", Up: accountingTables},
	{Version: "0003", Name: "transactions", Up: transactions},
	{Version: "0004", Name: "stock", Up: stock},
	{Version: "0005", Name: "platform", Up: platform},
	{Version: "0006", Name: "rbac", Up: rbac},
}

const masters = `
CREATE TABLE IF NOT EXISTS locations (
    id          BIGSERIAL PRIMARY KEY,
    code        VARCHAR(32) NOT NULL UNIQUE,
    name        VARCHAR(128) NOT NULL,
    address     VARCHAR(255) NOT NULL DEFAULT '',
    is_active   BOOLEAN NOT NULL DEFAULT TRUE,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS products (
    id                 BIGSERIAL PRIMARY KEY,
    code               VARCHAR(32) NOT NULL UNIQUE,
    name               VARCHAR(128) NOT NULL,
    rate               NUMERIC(18,4) NOT NULL DEFAULT 0,
    centrally_produced BOOLEAN NOT NULL DEFAULT FALSE,
    is_active          BOOLEAN NOT NULL DEFAULT TRUE,
    created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS product_recipes (
    product_id        BIGINT NOT NULL REFERENCES products (id) ON DELETE CASCADE,
    material_id       BIGINT NOT NULL REFERENCES products (id),
    quantity_per_unit NUMERIC(18,6) NOT NULL CHECK (quantity_per_unit > 0),
    PRIMARY KEY (product_id, material_id),
    CHECK (product_id <> material_id)
);

CREATE TABLE IF NOT EXISTS taxes (
    id            BIGSERIAL PRIMARY KEY,
    code          VARCHAR(32) NOT NULL UNIQUE,
    name          VARCHAR(128) NOT NULL,
    cgst_percent  NUMERIC(9,4) NOT NULL DEFAULT 0,
    sgst_percent  NUMERIC(9,4) NOT NULL DEFAULT 0,
    igst_percent  NUMERIC(9,4) NOT NULL DEFAULT 0,
    is_active     BOOLEAN NOT NULL DEFAULT TRUE,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    CHECK (igst_percent = 0 OR (cgst_percent = 0 AND sgst_percent = 0))
);
`

const accountingTables = `
CREATE TABLE IF NOT EXISTS periods (
    id          BIGSERIAL PRIMARY KEY,
    code        VARCHAR(32) NOT NULL UNIQUE,
    start_date  DATE NOT NULL,
    end_date    DATE NOT NULL,
    locked      BOOLEAN NOT NULL DEFAULT FALSE,
    active      BOOLEAN NOT NULL DEFAULT TRUE,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    CHECK (end_date >= start_date)
);

CREATE TABLE IF NOT EXISTS vouchers (
    id               BIGSERIAL PRIMARY KEY,
    voucher_type     VARCHAR(32) NOT NULL,
    reference_number VARCHAR(64) NOT NULL,
    reference_id     BIGINT NOT NULL,
    source_id        UUID NOT NULL,
    period_id        BIGINT NOT NULL REFERENCES periods (id),
    location_id      BIGINT REFERENCES locations (id),
    voucher_date     DATE NOT NULL,
    total_debit      NUMERIC(18,2) NOT NULL,
    total_credit     NUMERIC(18,2) NOT NULL,
    active           BOOLEAN NOT NULL DEFAULT TRUE,
    created_by       BIGINT,
    created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_vouchers_reference ON vouchers (reference_number) WHERE active;
CREATE INDEX IF NOT EXISTS idx_vouchers_reference_id ON vouchers (reference_id, voucher_type) WHERE active;
CREATE INDEX IF NOT EXISTS idx_vouchers_date ON vouchers (voucher_date) WHERE active;

CREATE TABLE IF NOT EXISTS voucher_lines (
    id             BIGSERIAL PRIMARY KEY,
    voucher_id     BIGINT NOT NULL REFERENCES vouchers (id) ON DELETE CASCADE,
    account_id     BIGINT NOT NULL,
    debit          NUMERIC(18,2) NOT NULL DEFAULT 0 CHECK (debit >= 0),
    credit         NUMERIC(18,2) NOT NULL DEFAULT 0 CHECK (credit >= 0),
    reference_id   BIGINT NOT NULL,
    reference_type VARCHAR(32) NOT NULL,
    remarks        TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_voucher_lines_voucher ON voucher_lines (voucher_id);
`

const transactions = `
CREATE TABLE IF NOT EXISTS document_sequences (
    prefix VARCHAR(16) NOT NULL,
    year   INT NOT NULL,
    seq    BIGINT NOT NULL,
    PRIMARY KEY (prefix, year)
);

CREATE TABLE IF NOT EXISTS transactions (
    id                      BIGSERIAL PRIMARY KEY,
    kind                    VARCHAR(32) NOT NULL,
    number                  VARCHAR(64) NOT NULL UNIQUE,
    txn_date                DATE NOT NULL,
    location_id             BIGINT NOT NULL REFERENCES locations (id),
    destination_location_id BIGINT REFERENCES locations (id),
    party_id                BIGINT,
    period_id               BIGINT NOT NULL REFERENCES periods (id),
    extra_charges_percent   NUMERIC(9,4) NOT NULL DEFAULT 0,
    discount_percent        NUMERIC(9,4) NOT NULL DEFAULT 0,
    round_off               NUMERIC(18,4) NOT NULL DEFAULT 0,
    round_off_manual        BOOLEAN NOT NULL DEFAULT FALSE,
    base_total              NUMERIC(18,4) NOT NULL DEFAULT 0,
    line_discount           NUMERIC(18,4) NOT NULL DEFAULT 0,
    tax_amount              NUMERIC(18,4) NOT NULL DEFAULT 0,
    sub_total               NUMERIC(18,4) NOT NULL DEFAULT 0,
    extra_charges           NUMERIC(18,4) NOT NULL DEFAULT 0,
    header_discount         NUMERIC(18,4) NOT NULL DEFAULT 0,
    total                   NUMERIC(18,4) NOT NULL DEFAULT 0,
    grand_total             NUMERIC(18,4) NOT NULL DEFAULT 0,
    cash_payment            NUMERIC(18,4) NOT NULL DEFAULT 0,
    bank_payment            NUMERIC(18,4) NOT NULL DEFAULT 0,
    remarks                 TEXT NOT NULL DEFAULT '',
    revision                INT NOT NULL DEFAULT 1,
    active                  BOOLEAN NOT NULL DEFAULT TRUE,
    created_by              BIGINT,
    created_at              TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    modified_by             BIGINT,
    modified_at             TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    platform                VARCHAR(32) NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_transactions_kind_date ON transactions (kind, txn_date);
CREATE INDEX IF NOT EXISTS idx_transactions_kind_active ON transactions (kind, active);

CREATE TABLE IF NOT EXISTS transaction_lines (
    id               BIGSERIAL PRIMARY KEY,
    header_id        BIGINT NOT NULL REFERENCES transactions (id),
    revision         INT NOT NULL,
    item_id          BIGINT NOT NULL REFERENCES products (id),
    quantity         NUMERIC(18,4) NOT NULL CHECK (quantity > 0),
    rate             NUMERIC(18,4) NOT NULL CHECK (rate >= 0),
    tax_id           BIGINT REFERENCES taxes (id),
    discount_percent NUMERIC(9,4) NOT NULL DEFAULT 0,
    cgst_percent     NUMERIC(9,4) NOT NULL DEFAULT 0,
    sgst_percent     NUMERIC(9,4) NOT NULL DEFAULT 0,
    igst_percent     NUMERIC(9,4) NOT NULL DEFAULT 0,
    inclusive        BOOLEAN NOT NULL DEFAULT FALSE,
    base_total       NUMERIC(18,4) NOT NULL,
    discount_amount  NUMERIC(18,4) NOT NULL,
    after_discount   NUMERIC(18,4) NOT NULL,
    cgst_amount      NUMERIC(18,4) NOT NULL,
    sgst_amount      NUMERIC(18,4) NOT NULL,
    igst_amount      NUMERIC(18,4) NOT NULL,
    total            NUMERIC(18,4) NOT NULL,
    net_rate         NUMERIC(18,4) NOT NULL,
    remarks          TEXT NOT NULL DEFAULT '',
    active           BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE INDEX IF NOT EXISTS idx_transaction_lines_header ON transaction_lines (header_id, revision);
`

const stock = `
CREATE TABLE IF NOT EXISTS stock_entries (
    id            BIGSERIAL PRIMARY KEY,
    item_id       BIGINT NOT NULL REFERENCES products (id),
    quantity      NUMERIC(18,4) NOT NULL,
    rate          NUMERIC(18,4),
    movement_type VARCHAR(32) NOT NULL,
    source_kind   VARCHAR(32) NOT NULL,
    source_id     BIGINT NOT NULL,
    source_number VARCHAR(64) NOT NULL DEFAULT '',
    location_id   BIGINT NOT NULL REFERENCES locations (id),
    entry_date    DATE NOT NULL,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_stock_entries_source ON stock_entries (source_kind, source_id);
CREATE INDEX IF NOT EXISTS idx_stock_entries_item_location ON stock_entries (item_id, location_id, entry_date);
`

const platform = `
CREATE TABLE IF NOT EXISTS app_settings (
    key        VARCHAR(128) PRIMARY KEY,
    value      TEXT NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS audit_logs (
    id          BIGSERIAL PRIMARY KEY,
    actor_id    BIGINT NOT NULL DEFAULT 0,
    platform    VARCHAR(32) NOT NULL DEFAULT '',
    action      VARCHAR(64) NOT NULL,
    entity      VARCHAR(64) NOT NULL,
    entity_id   VARCHAR(64) NOT NULL,
    meta        JSONB NOT NULL DEFAULT '{}',
    occurred_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_audit_logs_entity ON audit_logs (entity, entity_id);

CREATE TABLE IF NOT EXISTS idempotency_keys (
    key          VARCHAR(128) NOT NULL,
    module       VARCHAR(64) NOT NULL,
    request_hash VARCHAR(64) NOT NULL DEFAULT '',
    result_id    BIGINT,
    created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (key, module)
);
`

const rbac = `
CREATE TABLE IF NOT EXISTS roles (
    id          BIGSERIAL PRIMARY KEY,
    name        VARCHAR(64) NOT NULL UNIQUE,
    description TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS permissions (
    id          BIGSERIAL PRIMARY KEY,
    name        VARCHAR(128) NOT NULL UNIQUE,
    description TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS role_permissions (
    role_id       BIGINT NOT NULL REFERENCES roles (id) ON DELETE CASCADE,
    permission_id BIGINT NOT NULL REFERENCES permissions (id) ON DELETE CASCADE,
    PRIMARY KEY (role_id, permission_id)
);

CREATE TABLE IF NOT EXISTS user_roles (
    user_id BIGINT NOT NULL,
    role_id BIGINT NOT NULL REFERENCES roles (id) ON DELETE CASCADE,
    PRIMARY KEY (user_id, role_id)
);
`
