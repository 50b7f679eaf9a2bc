package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/tolkbridge/tolka/internal/models"
	"github.com/tolkbridge/tolka/pkg/repository"
)

func (r *Repo) CreateUser(ctx context.Context, u *models.User) (int64, error) {
	if u == nil {
		return 0, fmt.Errorf("user is nil")
	}

	now := time.Now().UTC().Unix()
	res, err := r.conn.Exec(ctx, `INSERT INTO users (role, active, email, name, phone, password_hash, created, updated)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		string(u.Role), boolInt(u.Active), u.Email, u.Name, u.Phone, u.PasswordHash, now, now)
	if err != nil {
		return 0, err
	}

	return res.LastInsertId()
}

func scanUser(scan func(...any) error) (*models.User, error) {
	var (
		u      models.User
		role   string
		active int
	)
	if err := scan(&u.ID, &role, &active, &u.Email, &u.Name, &u.Phone, &u.PasswordHash); err != nil {
		return nil, err
	}
	u.Role = models.Role(role)
	u.Active = active != 0
	return &u, nil
}

func (r *Repo) GetUser(ctx context.Context, id int64) (*models.User, error) {
	row := r.conn.QueryRow(ctx, `SELECT id, role, active, email, name, phone, password_hash FROM users WHERE id = ?`, id)
	u, err := scanUser(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, repository.ErrNotFound
		}

		return nil, err
	}

	return u, nil
}

func (r *Repo) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	row := r.conn.QueryRow(ctx, `SELECT id, role, active, email, name, phone, password_hash FROM users WHERE email = ?`, email)
	u, err := scanUser(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, repository.ErrNotFound
		}

		return nil, err
	}

	return u, nil
}

func (r *Repo) TranslatorProfile(ctx context.Context, userID int64) (*models.TranslatorProfile, error) {
	row := r.conn.QueryRow(ctx, `SELECT user_id, translator_type, gender, certification_level, town,
not_get_emergency, not_get_nighttime, not_get_notification FROM translator_profiles WHERE user_id = ?`, userID)

	var (
		p                            models.TranslatorProfile
		tType, gender, level         string
		notEmerg, notNight, notNotif int
	)
	if err := row.Scan(&p.UserID, &tType, &gender, &level, &p.Town, &notEmerg, &notNight, &notNotif); err != nil {
		if err == sql.ErrNoRows {
			return nil, repository.ErrNotFound
		}

		return nil, err
	}
	p.TranslatorType = models.TranslatorType(tType)
	p.Gender = models.Gender(gender)
	p.CertificationLevel = models.CertificationLevel(level)
	p.NotGetEmergency = notEmerg != 0
	p.NotGetNighttime = notNight != 0
	p.NotGetNotification = notNotif != 0

	langs, err := r.translatorLanguages(ctx, userID)
	if err != nil {
		return nil, err
	}
	p.Languages = langs

	return &p, nil
}

func (r *Repo) translatorLanguages(ctx context.Context, userID int64) ([]int64, error) {
	rows, err := r.conn.QueryRows(ctx, `SELECT language_id FROM translator_languages WHERE user_id = ? ORDER BY language_id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}

	return out, rows.Err()
}

func (r *Repo) CustomerProfile(ctx context.Context, userID int64) (*models.CustomerProfile, error) {
	row := r.conn.QueryRow(ctx, `SELECT user_id, consumer_type, customer_type, town, address, instructions
FROM customer_profiles WHERE user_id = ?`, userID)

	var (
		p        models.CustomerProfile
		consumer string
	)
	if err := row.Scan(&p.UserID, &consumer, &p.CustomerType, &p.Town, &p.Address, &p.Instructions); err != nil {
		if err == sql.ErrNoRows {
			return nil, repository.ErrNotFound
		}

		return nil, err
	}
	p.ConsumerType = models.ConsumerType(consumer)

	return &p, nil
}

func (r *Repo) UpsertTranslatorProfile(ctx context.Context, p *models.TranslatorProfile) error {
	if p == nil {
		return fmt.Errorf("profile is nil")
	}

	_, err := r.conn.Exec(ctx, `INSERT INTO translator_profiles (user_id, translator_type, gender, certification_level, town,
not_get_emergency, not_get_nighttime, not_get_notification) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(user_id) DO UPDATE SET translator_type=excluded.translator_type, gender=excluded.gender,
certification_level=excluded.certification_level, town=excluded.town, not_get_emergency=excluded.not_get_emergency,
not_get_nighttime=excluded.not_get_nighttime, not_get_notification=excluded.not_get_notification`,
		p.UserID, string(p.TranslatorType), string(p.Gender), string(p.CertificationLevel), p.Town,
		boolInt(p.NotGetEmergency), boolInt(p.NotGetNighttime), boolInt(p.NotGetNotification))
	if err != nil {
		return err
	}

	if _, err := r.conn.Exec(ctx, `DELETE FROM translator_languages WHERE user_id = ?`, p.UserID); err != nil {
		return err
	}
	for _, langID := range p.Languages {
		if _, err := r.conn.Exec(ctx, `INSERT INTO translator_languages (user_id, language_id) VALUES (?, ?)`, p.UserID, langID); err != nil {
			return err
		}
	}

	return nil
}

func (r *Repo) UpsertCustomerProfile(ctx context.Context, p *models.CustomerProfile) error {
	if p == nil {
		return fmt.Errorf("profile is nil")
	}

	_, err := r.conn.Exec(ctx, `INSERT INTO customer_profiles (user_id, consumer_type, customer_type, town, address, instructions)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(user_id) DO UPDATE SET consumer_type=excluded.consumer_type, customer_type=excluded.customer_type,
town=excluded.town, address=excluded.address, instructions=excluded.instructions`,
		p.UserID, string(p.ConsumerType), p.CustomerType, p.Town, p.Address, p.Instructions)
	return err
}

func (r *Repo) ListActiveTranslators(ctx context.Context) ([]models.TranslatorProfile, error) {
	rows, err := r.conn.QueryRows(ctx, `SELECT p.user_id, p.translator_type, p.gender, p.certification_level, p.town,
p.not_get_emergency, p.not_get_nighttime, p.not_get_notification
FROM translator_profiles p JOIN users u ON u.id = p.user_id
WHERE u.role = ? AND u.active = 1 ORDER BY p.user_id`, string(models.RoleTranslator))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.TranslatorProfile
	for rows.Next() {
		var (
			p                            models.TranslatorProfile
			tType, gender, level         string
			notEmerg, notNight, notNotif int
		)
		if err := rows.Scan(&p.UserID, &tType, &gender, &level, &p.Town, &notEmerg, &notNight, &notNotif); err != nil {
			return nil, err
		}
		p.TranslatorType = models.TranslatorType(tType)
		p.Gender = models.Gender(gender)
		p.CertificationLevel = models.CertificationLevel(level)
		p.NotGetEmergency = notEmerg != 0
		p.NotGetNighttime = notNight != 0
		p.NotGetNotification = notNotif != 0
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		langs, err := r.translatorLanguages(ctx, out[i].UserID)
		if err != nil {
			return nil, err
		}
		out[i].Languages = langs
	}

	return out, nil
}

func (r *Repo) IsBlacklisted(ctx context.Context, customerID, translatorID int64) (bool, error) {
	row := r.conn.QueryRow(ctx, `SELECT COUNT(1) FROM blacklist WHERE customer_id = ? AND translator_id = ?`, customerID, translatorID)
	var count int
	if err := row.Scan(&count); err != nil {
		return false, err
	}

	return count > 0, nil
}

func (r *Repo) AddBlacklist(ctx context.Context, customerID, translatorID int64) error {
	_, err := r.conn.Exec(ctx, `INSERT OR IGNORE INTO blacklist (customer_id, translator_id) VALUES (?, ?)`, customerID, translatorID)
	return err
}

func (r *Repo) CreateLanguage(ctx context.Context, name string) (int64, error) {
	res, err := r.conn.Exec(ctx, `INSERT INTO languages (name) VALUES (?) ON CONFLICT(name) DO UPDATE SET name=excluded.name`, name)
	if err != nil {
		return 0, err
	}

	return res.LastInsertId()
}

func (r *Repo) LanguageName(ctx context.Context, id int64) (string, error) {
	row := r.conn.QueryRow(ctx, `SELECT name FROM languages WHERE id = ?`, id)
	var name string
	if err := row.Scan(&name); err != nil {
		if err == sql.ErrNoRows {
			return "", repository.ErrNotFound
		}

		return "", err
	}

	return name, nil
}
