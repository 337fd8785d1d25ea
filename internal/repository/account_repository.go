package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"

	"github.com/smartplate/smartplate-api/internal/model"
)

const accountColumns = "id,name,email,password_hash,role,diet_time,diet_start_date,diet_end_date," +
	"must_change_password,first_login,last_login_at,created_at,updated_at"

// AccountRepo reads and writes the 'accounts' table.
type AccountRepo struct{ DB *sql.DB }

func NewAccountRepo(db *sql.DB) *AccountRepo { return &AccountRepo{DB: db} }

// Create inserts a. The caller assigns the id and the password hash.
func (r *AccountRepo) Create(ctx context.Context, a *model.Account) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO accounts (id,name,email,password_hash,role,diet_time,diet_start_date,diet_end_date,must_change_password,first_login,created_at,updated_at) "+
			"VALUES (?,?,?,?,?,?,?,?,?,?,?,?)",
		a.ID, a.Name, model.NormalizeEmail(a.Email), a.PasswordHash, string(a.Role),
		nullString(a.DietTime), nullDate(a.DietStartDate), nullDate(a.DietEndDate),
		a.MustChangePassword, a.FirstLogin, a.CreatedAt, a.CreatedAt)
	if err != nil {
		if isDuplicate(err) {
			return ErrEmailExists
		}
		return errors.Wrap(err, "insert account")
	}
	return nil
}

// GetByID fetches an account by id.
func (r *AccountRepo) GetByID(ctx context.Context, id string) (model.Account, error) {
	row := r.DB.QueryRowContext(ctx, "SELECT "+accountColumns+" FROM accounts WHERE id=? LIMIT 1", id)
	a, err := scanAccount(row)
	if err != nil {
		return model.Account{}, notFound(err, "get account by id")
	}
	return a, nil
}

// GetByEmail fetches an account by normalized email.
func (r *AccountRepo) GetByEmail(ctx context.Context, email string) (model.Account, error) {
	row := r.DB.QueryRowContext(ctx, "SELECT "+accountColumns+" FROM accounts WHERE email=? LIMIT 1",
		model.NormalizeEmail(email))
	a, err := scanAccount(row)
	if err != nil {
		return model.Account{}, notFound(err, "get account by email")
	}
	return a, nil
}

// FirstAdmin returns the earliest created admin account.
func (r *AccountRepo) FirstAdmin(ctx context.Context) (model.Account, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE role='admin' ORDER BY created_at ASC LIMIT 1")
	a, err := scanAccount(row)
	if err != nil {
		return model.Account{}, notFound(err, "get first admin")
	}
	return a, nil
}

// TouchLogin records a successful login.
func (r *AccountRepo) TouchLogin(ctx context.Context, id string, at time.Time) error {
	_, err := r.DB.ExecContext(ctx, "UPDATE accounts SET last_login_at=? WHERE id=?", at, id)
	return errors.Wrap(err, "touch login")
}

// UpdatePassword stores a new hash and clears the first-login flags.
func (r *AccountRepo) UpdatePassword(ctx context.Context, id, hash string) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE accounts SET password_hash=?, must_change_password=0, first_login=0 WHERE id=?", hash, id)
	if err != nil {
		return errors.Wrap(err, "update password")
	}
	return requireAffected(res)
}

// UpdatePlan replaces the plan fields of a user account.  Nil dates and an
// empty dietTime are stored as NULL.
func (r *AccountRepo) UpdatePlan(ctx context.Context, id, dietTime string, start, end *time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE accounts SET diet_time=?, diet_start_date=?, diet_end_date=? WHERE id=? AND role='user'",
		nullString(dietTime), nullDate(start), nullDate(end), id)
	return errors.Wrap(err, "update plan")
}

// DeleteUser removes a user account.  Refresh tokens, questionnaire and
// messages go with it through ON DELETE CASCADE.
func (r *AccountRepo) DeleteUser(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM accounts WHERE id=? AND role='user'", id)
	if err != nil {
		return errors.Wrap(err, "delete account")
	}
	return requireAffected(res)
}

// ListUsers returns every user account, newest first, joined with the
// questionnaire fields shown on the dashboard.
func (r *AccountRepo) ListUsers(ctx context.Context) ([]model.DashboardRow, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT a.id,a.name,a.email,a.diet_time,a.diet_start_date,a.diet_end_date,a.first_login,a.must_change_password,a.created_at,"+
			"q.age,q.program_goal,q.height,q.weight "+
			"FROM accounts a LEFT JOIN questionnaires q ON q.user_id=a.id "+
			"WHERE a.role='user' ORDER BY a.created_at DESC")
	if err != nil {
		return nil, errors.Wrap(err, "list users")
	}
	defer rows.Close()

	var out []model.DashboardRow
	for rows.Next() {
		var (
			d                    model.DashboardRow
			dietTime             sql.NullString
			start, end           sql.NullTime
			age                  sql.NullInt64
			goal, height, weight sql.NullString
		)
		if err := rows.Scan(&d.ID, &d.Name, &d.Email, &dietTime, &start, &end, &d.FirstLogin,
			&d.MustChangePassword, &d.CreatedAt, &age, &goal, &height, &weight); err != nil {
			return nil, errors.Wrap(err, "scan user row")
		}
		d.DietTime = dietTime.String
		d.DietStartDate = timePtr(start)
		d.DietEndDate = timePtr(end)
		if age.Valid {
			n := int(age.Int64)
			d.Age = &n
		}
		d.ProgramGoal = stringPtr(goal)
		d.Height = stringPtr(height)
		d.Weight = stringPtr(weight)
		out = append(out, d)
	}
	return out, errors.Wrap(rows.Err(), "iterate users")
}

// UpsertAdmin creates the admin account or, when the e-mail already exists,
// refreshes its name and password.  A client account with the same e-mail is
// left untouched; the returned account reflects what is stored.
func (r *AccountRepo) UpsertAdmin(ctx context.Context, a *model.Account) (model.Account, error) {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO accounts (id,name,email,password_hash,role,must_change_password,first_login,created_at,updated_at) "+
			"VALUES (?,?,?,?,'admin',0,0,?,?) "+
			"ON DUPLICATE KEY UPDATE name=IF(role='admin',VALUES(name),name), "+
			"password_hash=IF(role='admin',VALUES(password_hash),password_hash)",
		a.ID, a.Name, model.NormalizeEmail(a.Email), a.PasswordHash, a.CreatedAt, a.CreatedAt)
	if err != nil {
		return model.Account{}, errors.Wrap(err, "upsert admin")
	}
	return r.GetByEmail(ctx, a.Email)
}

func scanAccount(row rowScanner) (model.Account, error) {
	var (
		a          model.Account
		role       string
		dietTime   sql.NullString
		start, end sql.NullTime
		lastLogin  sql.NullTime
	)
	err := row.Scan(&a.ID, &a.Name, &a.Email, &a.PasswordHash, &role, &dietTime, &start, &end,
		&a.MustChangePassword, &a.FirstLogin, &lastLogin, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return model.Account{}, err
	}
	a.Role = model.Role(role)
	a.DietTime = dietTime.String
	a.DietStartDate = timePtr(start)
	a.DietEndDate = timePtr(end)
	a.LastLoginAt = timePtr(lastLogin)
	return a, nil
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "rows affected")
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// nullDate binds a calendar date as YYYY-MM-DD so the driver never shifts it
// across zones.
func nullDate(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.Format("2006-01-02"), Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func stringPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}
